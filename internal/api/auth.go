package api

import (
	"context"
	"net/http"
	"net/url"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest carries the registration form.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// RefreshSession exchanges a refresh token for a fresh pair. The call is
// anonymous and never re-enters the 401 recovery path: a rejected refresh is
// terminal for the session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/refresh", nil,
		refreshRequest{RefreshToken: refreshToken}, &pair, NoAuth(), NoRetry())
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Login authenticates with credentials and returns the issued token pair.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/login", nil,
		loginRequest{Email: email, Password: password}, &pair, NoAuth(), NoRetry())
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, req, &pair, NoAuth(), NoRetry()); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// ResendVerificationEmail asks the upstream to re-send the verification OTP.
func (c *Client) ResendVerificationEmail(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/email-resend", nil, nil, nil, RequireAuth())
}

// VerifyEmail submits the OTP entered by the user.
func (c *Client) VerifyEmail(ctx context.Context, otp string) error {
	return c.do(ctx, http.MethodPost, "/auth/email-verify", nil, verifyEmailRequest{OTP: otp}, nil, RequireAuth())
}

// RequestPasswordReset triggers the reset email for the given address.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	params := url.Values{}
	params.Set("email", email)
	return c.do(ctx, http.MethodGet, "/auth/password/reset", params, nil, nil, NoAuth())
}

// ResetPassword completes a reset using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/password/reset/"+token, nil,
		resetPasswordRequest{Password: password}, nil, NoAuth())
}
