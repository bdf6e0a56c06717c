package api

import (
	"context"
	"net/http"
)

type userResponse struct {
	Data User `json:"data"`
}

// Me fetches the current user profile.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &resp, RequireAuth()); err != nil {
		return User{}, err
	}
	return resp.Data, nil
}

// UpdateMe patches profile fields and returns the updated profile.
func (c *Client) UpdateMe(ctx context.Context, patch map[string]any) (User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPatch, "/users/me", nil, patch, &resp, RequireAuth()); err != nil {
		return User{}, err
	}
	return resp.Data, nil
}

// UpdatePreferences replaces the stored preference document.
func (c *Client) UpdatePreferences(ctx context.Context, prefs map[string]any) error {
	return c.do(ctx, http.MethodPut, "/users/me/preferences", nil, prefs, nil, RequireAuth())
}

// SignedUploadRequest describes the file about to be uploaded.
type SignedUploadRequest struct {
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
}

// SignedUploadURL requests a direct upload URL for user media.
func (c *Client) SignedUploadURL(ctx context.Context, req SignedUploadRequest) (SignedUpload, error) {
	var resp struct {
		Data SignedUpload `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/signed-urls", nil, req, &resp, RequireAuth()); err != nil {
		return SignedUpload{}, err
	}
	return resp.Data, nil
}
