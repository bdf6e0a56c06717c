package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// OfferFilter narrows offer listings. Categories and BrandIDs serialize as
// repeated query keys (category=A&category=B), never comma-joined.
type OfferFilter struct {
	Categories []string
	BrandIDs   []string
	Search     string
	Page       int
	Limit      int
}

func (f OfferFilter) Values() url.Values {
	params := url.Values{}
	for _, c := range f.Categories {
		params.Add("category", c)
	}
	for _, id := range f.BrandIDs {
		params.Add("brand_id", id)
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

type offerListResponse struct {
	Data  []Offer `json:"data"`
	Total int     `json:"total"`
}

type offerResponse struct {
	Data Offer `json:"data"`
}

// ListOffers returns a filtered, paginated deal listing.
func (c *Client) ListOffers(ctx context.Context, filter OfferFilter) ([]Offer, int, error) {
	var resp offerListResponse
	if err := c.do(ctx, http.MethodGet, "/offers", filter.Values(), nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Data, resp.Total, nil
}

// MyOffers returns the offers owned by the current user.
func (c *Client) MyOffers(ctx context.Context) ([]Offer, error) {
	var resp offerListResponse
	if err := c.do(ctx, http.MethodGet, "/offers/my-offers", nil, nil, &resp, RequireAuth()); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BestOffers returns the highest ranked deals.
func (c *Client) BestOffers(ctx context.Context, limit int) ([]Offer, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp offerListResponse
	if err := c.do(ctx, http.MethodGet, "/offers/best", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetOffer fetches one offer by id.
func (c *Client) GetOffer(ctx context.Context, id string) (Offer, error) {
	var resp offerResponse
	if err := c.do(ctx, http.MethodGet, "/offers/"+id, nil, nil, &resp); err != nil {
		return Offer{}, err
	}
	return resp.Data, nil
}

// CreateOffer publishes a new offer.
func (c *Client) CreateOffer(ctx context.Context, fields map[string]any) (Offer, error) {
	var resp offerResponse
	if err := c.do(ctx, http.MethodPost, "/offers", nil, fields, &resp, RequireAuth()); err != nil {
		return Offer{}, err
	}
	return resp.Data, nil
}

// UpdateOffer patches offer fields.
func (c *Client) UpdateOffer(ctx context.Context, id string, patch map[string]any) (Offer, error) {
	var resp offerResponse
	if err := c.do(ctx, http.MethodPatch, "/offers/"+id, nil, patch, &resp, RequireAuth()); err != nil {
		return Offer{}, err
	}
	return resp.Data, nil
}

// DeleteOffer removes an offer.
func (c *Client) DeleteOffer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/offers/"+id, nil, nil, nil, RequireAuth())
}
