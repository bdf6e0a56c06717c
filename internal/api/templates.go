package api

import (
	"context"
	"net/http"
)

type templateListResponse struct {
	Data []Template `json:"data"`
}

type templateResponse struct {
	Data Template `json:"data"`
}

// ListTemplates returns all templates visible to the caller.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var resp templateListResponse
	if err := c.do(ctx, http.MethodGet, "/templates", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// MyTemplates returns the templates authored by the current owner.
func (c *Client) MyTemplates(ctx context.Context) ([]Template, error) {
	var resp templateListResponse
	if err := c.do(ctx, http.MethodGet, "/templates/my-templates", nil, nil, &resp, RequireAuth()); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateTemplate creates an empty template bound to a brand.
func (c *Client) CreateTemplate(ctx context.Context, brandID string) (Template, error) {
	var resp templateResponse
	body := map[string]any{"brand_id": brandID}
	if err := c.do(ctx, http.MethodPost, "/templates", nil, body, &resp, RequireAuth()); err != nil {
		return Template{}, err
	}
	return resp.Data, nil
}

// UpdateTemplate patches template content fields.
func (c *Client) UpdateTemplate(ctx context.Context, patch map[string]any) (Template, error) {
	var resp templateResponse
	if err := c.do(ctx, http.MethodPatch, "/templates", nil, patch, &resp, RequireAuth()); err != nil {
		return Template{}, err
	}
	return resp.Data, nil
}
