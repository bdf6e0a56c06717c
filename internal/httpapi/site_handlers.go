package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"droffers.app/internal/audit"
	"droffers.app/internal/microsite"
)

const viewSendTimeout = 5 * time.Second

type clickBeaconRequest struct {
	Count int64 `json:"count"`
}

func (a *API) handleSiteTree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/b/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "brand not found")
		return
	}

	if strings.HasSuffix(rest, "/click") {
		slug := strings.TrimSuffix(rest, "/click")
		slug = strings.TrimSuffix(slug, "/")
		if slug == "" {
			writeError(w, r, http.StatusNotFound, "brand not found")
			return
		}
		switch r.Method {
		case http.MethodPost:
			a.recordClick(w, r, slug)
		default:
			methodNotAllowed(w, r, http.MethodPost)
		}
		return
	}

	if strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getSite(w, r, rest)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) getSite(w http.ResponseWriter, r *http.Request, slug string) {
	site, err := a.sites.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, microsite.ErrUnavailable) {
			writeError(w, r, http.StatusNotFound, "micro-site unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	// Every page load counts one view. Delivery is best-effort: the page is
	// served regardless, a failed send is logged and not retried.
	if a.views != nil {
		brandID := site.BrandID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), viewSendTimeout)
			defer cancel()
			if err := a.views.RecordView(ctx, brandID); err != nil {
				_ = audit.LogEvent(ctx, "analytics.view.failed", map[string]any{
					"brand_id": brandID,
					"error":    err.Error(),
				})
			}
		}()
	}

	writeJSON(w, http.StatusOK, site)
}

func (a *API) recordClick(w http.ResponseWriter, r *http.Request, slug string) {
	site, err := a.sites.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, microsite.ErrUnavailable) {
			writeError(w, r, http.StatusNotFound, "micro-site unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	// The beacon body is optional; an empty POST counts a single click.
	count := int64(1)
	if r.ContentLength != 0 {
		var req clickBeaconRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.Count < 1 || req.Count > 100 {
			writeError(w, r, http.StatusBadRequest, "count must be between 1 and 100")
			return
		}
		count = req.Count
	}

	rec := a.hub.Recorder(site.BrandID)
	if rec == nil {
		writeError(w, r, http.StatusServiceUnavailable, "shutting down")
		return
	}
	for i := int64(0); i < count; i++ {
		rec.Click()
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": count,
		"pending":  rec.Pending(),
	})
}
