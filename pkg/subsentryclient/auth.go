package subsentryclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/login", nil, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, in domain.SignupInput) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/signup", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyToken checks the session's token and returns its user.
func (c *Client) VerifyToken(ctx context.Context) (*domain.User, error) {
	var out struct {
		User *domain.User `json:"user"`
	}
	if err := c.getJSON(ctx, "/auth/verify", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, ErrUnauthorized
	}
	return out.User, nil
}

// UpdateProfile saves profile fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, profile domain.User) (*domain.User, error) {
	var out struct {
		User *domain.User `json:"user"`
	}
	resp, err := c.do(ctx, request{method: http.MethodPut, path: "/auth/profile", body: profile})
	if err != nil {
		return nil, err
	}
	payload := Unwrap(resp.body)
	if err := decode(payload, &out); err != nil {
		return nil, err
	}
	if out.User != nil {
		return out.User, nil
	}
	var direct domain.User
	if err := decode(payload, &direct); err != nil {
		return nil, err
	}
	return &direct, nil
}

func (c *Client) ChangePassword(ctx context.Context, in domain.PasswordChange) error {
	return c.send(ctx, http.MethodPut, "/auth/change-password", nil, in, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{"email": email}, nil)
}

// ResetPassword completes a reset started by ForgotPassword.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	path := "/auth/reset-password/" + url.PathEscape(token)
	return c.send(ctx, http.MethodPost, path, nil, map[string]string{"password": password}, nil)
}
