package api

import (
	"context"
	"errors"
	"net/http"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Registration is the sign-up form, submitted after the emailed code is verified.
type Registration struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Surname  string `json:"surname" form:"surname" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Code     string `json:"code" form:"code" binding:"required"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, cr Credentials) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.Do(ctx, "login", http.MethodPost, "/auth/login", "", cr, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login: empty token in response")
	}
	return resp.Token, nil
}

// EmailRegistered reports whether an account already uses email.
func (c *Client) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	err := c.Do(ctx, "check_email", http.MethodPost, "/auth/check-email", "", map[string]string{"email": email}, &resp)
	return resp.Exists, err
}

// SendCode asks the API to email a verification code.
func (c *Client) SendCode(ctx context.Context, email string) error {
	return c.Do(ctx, "send_code", http.MethodPost, "/auth/send-code", "", map[string]string{"email": email}, nil)
}

// VerifyCode checks an emailed verification code.
func (c *Client) VerifyCode(ctx context.Context, email, code string) error {
	return c.Do(ctx, "verify_code", http.MethodPost, "/auth/verify-code", "", map[string]string{"email": email, "code": code}, nil)
}

// Register creates a citizen account.
func (c *Client) Register(ctx context.Context, r Registration) error {
	return c.Do(ctx, "register", http.MethodPost, "/auth/register", "", r, nil)
}
