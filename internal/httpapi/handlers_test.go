package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"droffers.app/internal/analytics"
	"droffers.app/internal/microsite"
)

type fakeSites struct {
	mu    sync.Mutex
	sites map[string]*microsite.Site
	err   error
}

func (f *fakeSites) Resolve(ctx context.Context, slug string) (*microsite.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	site, ok := f.sites[slug]
	if !ok {
		return nil, microsite.ErrUnavailable
	}
	return site, nil
}

type fakeEvents struct {
	mu      sync.Mutex
	views   []string
	batches map[string]int64
}

func (f *fakeEvents) RecordView(ctx context.Context, brandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, brandID)
	return nil
}

func (f *fakeEvents) RecordClicks(ctx context.Context, brandID string, count int64, idemKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batches == nil {
		f.batches = make(map[string]int64)
	}
	f.batches[brandID] += count
	return nil
}

func (f *fakeEvents) viewsFor(brandID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.views {
		if id == brandID {
			n++
		}
	}
	return n
}

func (f *fakeEvents) clicksFor(brandID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[brandID]
}

type apiClient struct {
	baseURL string
	client  *http.Client
	events  *fakeEvents
	hub     *analytics.Hub
	t       *testing.T
}

func newTestAPI(t *testing.T, sites *fakeSites) *apiClient {
	t.Helper()

	events := &fakeEvents{}
	hub := analytics.NewHub(events, analytics.WithDebounce(20*time.Millisecond))
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	api := New(sites, events, hub, ReadyProbe{}, "test")
	srv := httptest.NewServer(RequestID(api.Handler()))
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		events:  events,
		hub:     hub,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func siteFixture() *fakeSites {
	return &fakeSites{sites: map[string]*microsite.Site{
		"lavash-house": {
			BrandID:   "brand-1",
			BrandName: "Lavash House",
			Slug:      "lavash-house",
			Variant:   microsite.VariantFood,
		},
	}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSiteEndpointServesResolvedPage(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.get("/b/lavash-house")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if rid := resp.Header.Get("X-Request-Id"); rid == "" {
		t.Fatal("missing request id header")
	}
	site := decode[map[string]any](t, resp)
	if site["brand_id"] != "brand-1" || site["variant"] != "food" {
		t.Fatalf("unexpected site payload: %v", site)
	}

	// Each page load counts one view, delivered out of band.
	waitFor(t, func() bool { return api.events.viewsFor("brand-1") == 1 })
}

func TestSiteEndpointUnavailable(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.get("/b/no-such-brand")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "micro-site unavailable" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestSiteEndpointInternalError(t *testing.T) {
	api := newTestAPI(t, &fakeSites{err: errors.New("boom")})

	resp := api.get("/b/lavash-house")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestClickBeaconBatches(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	for i := 0; i < 3; i++ {
		resp := api.post("/b/lavash-house/click", nil, nil)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("unexpected status: %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := api.post("/b/lavash-house/click", map[string]any{"count": 4}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	accepted := decode[map[string]any](t, resp)
	if accepted["accepted"].(float64) != 4 {
		t.Fatalf("unexpected accepted count: %v", accepted["accepted"])
	}

	// All seven clicks land upstream once the debounce window closes.
	waitFor(t, func() bool { return api.events.clicksFor("brand-1") == 7 })
}

func TestClickBeaconValidatesCount(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.post("/b/lavash-house/click", map[string]any{"count": 0}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestClickBeaconUnknownBrand(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.post("/b/no-such-brand/click", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSiteEndpointMethods(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.post("/b/lavash-house", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != "GET" {
		t.Fatalf("unexpected Allow header: %q", resp.Header.Get("Allow"))
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, siteFixture())

	resp := api.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "droffers-web" {
		t.Fatalf("unexpected health payload: %v", body)
	}

	resp = api.get("/readyz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected ready status: %d", resp.StatusCode)
	}
}

func TestReadyReportsUpstreamFailure(t *testing.T) {
	probe := ReadyProbe{Ping: func(ctx context.Context) error {
		return errors.New("upstream unreachable")
	}}
	events := &fakeEvents{}
	hub := analytics.NewHub(events)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })
	api := New(siteFixture(), events, hub, probe, "test")

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
