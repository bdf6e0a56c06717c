package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// BrandFilter narrows brand listings. Array-valued fields serialize as
// repeated query keys.
type BrandFilter struct {
	Categories []string
	Search     string
	Page       int
	Limit      int
}

func (f BrandFilter) Values() url.Values {
	params := url.Values{}
	for _, c := range f.Categories {
		params.Add("category", c)
	}
	if f.Search != "" {
		params.Set("search", f.Search)
	}
	if f.Page > 0 {
		params.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	return params
}

type brandListResponse struct {
	Data  []Brand `json:"data"`
	Total int     `json:"total"`
}

type brandResponse struct {
	Data Brand `json:"data"`
}

// ListBrands returns a filtered, paginated brand listing with the total
// matching count.
func (c *Client) ListBrands(ctx context.Context, filter BrandFilter) ([]Brand, int, error) {
	var resp brandListResponse
	if err := c.do(ctx, http.MethodGet, "/brands", filter.Values(), nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Data, resp.Total, nil
}

// TopBrands returns the most viewed brands.
func (c *Client) TopBrands(ctx context.Context, limit int) ([]Brand, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp brandListResponse
	if err := c.do(ctx, http.MethodGet, "/brands/top", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetBrand fetches one brand by id.
func (c *Client) GetBrand(ctx context.Context, id string) (Brand, error) {
	var resp brandResponse
	if err := c.do(ctx, http.MethodGet, "/brands/"+id, nil, nil, &resp); err != nil {
		return Brand{}, err
	}
	return resp.Data, nil
}

// CreateBrand registers a brand for the current owner.
func (c *Client) CreateBrand(ctx context.Context, fields map[string]any) (Brand, error) {
	var resp brandResponse
	if err := c.do(ctx, http.MethodPost, "/brands", nil, fields, &resp, RequireAuth()); err != nil {
		return Brand{}, err
	}
	return resp.Data, nil
}

// UpdateBrand patches brand fields.
func (c *Client) UpdateBrand(ctx context.Context, id string, patch map[string]any) (Brand, error) {
	var resp brandResponse
	if err := c.do(ctx, http.MethodPatch, "/brands/"+id, nil, patch, &resp, RequireAuth()); err != nil {
		return Brand{}, err
	}
	return resp.Data, nil
}

// BrandTemplates returns the published templates for a brand slug, newest
// first. Public: anonymous visitors hit this on every micro-site load.
func (c *Client) BrandTemplates(ctx context.Context, slug string) ([]Template, error) {
	var resp struct {
		Data []Template `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/brands/"+slug+"/templates", nil, nil, &resp, NoAuth()); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type clicksRequest struct {
	Count int64 `json:"count"`
}

// RecordView reports one page view for a brand.
func (c *Client) RecordView(ctx context.Context, brandID string) error {
	return c.do(ctx, http.MethodPost, "/brands/"+brandID+"/views", nil, nil, nil, NoAuth())
}

// RecordClicks reports a batched click count for a brand. The idempotency
// header lets the upstream drop duplicate deliveries of the same batch.
func (c *Client) RecordClicks(ctx context.Context, brandID string, count int64, idemKey string) error {
	opts := []ReqOption{NoAuth()}
	if idemKey != "" {
		opts = append(opts, WithHeader("Idempotency-Key", idemKey))
	}
	return c.do(ctx, http.MethodPost, "/brands/"+brandID+"/clicks", nil,
		clicksRequest{Count: count}, nil, opts...)
}

// BrandAnalytics returns the dashboard summary for a brand.
func (c *Client) BrandAnalytics(ctx context.Context, brandID string) (Analytics, error) {
	var resp struct {
		Data Analytics `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/brands/"+brandID+"/analytics", nil, nil, &resp, RequireAuth()); err != nil {
		return Analytics{}, err
	}
	return resp.Data, nil
}

// BrandHourlyViews returns the views-per-hour series.
func (c *Client) BrandHourlyViews(ctx context.Context, brandID string) ([]HourlyViews, error) {
	var resp struct {
		Data []HourlyViews `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/brands/"+brandID+"/views/hourly", nil, nil, &resp, RequireAuth()); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BrandDailyClicks returns the clicks-per-day series.
func (c *Client) BrandDailyClicks(ctx context.Context, brandID string) ([]DailyClicks, error) {
	var resp struct {
		Data []DailyClicks `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/brands/"+brandID+"/clicks/daily", nil, nil, &resp, RequireAuth()); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
