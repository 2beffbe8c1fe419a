package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the Supabase GoTrue REST API directly. The official
// SDK does not expose per-request headers we need (forwarded client IP,
// captcha tokens), so requests are built by hand.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// apiError is GoTrue's error shape. Older endpoints use msg, OAuth-style
// endpoints use error_description.
type apiError struct {
	Msg              string `json:"msg"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *apiError) message(fallback string) string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.ErrorField != "":
		return e.ErrorField
	}
	return fallback
}

// AuthError is returned for 4xx responses from GoTrue so callers can
// distinguish bad credentials from transport failures.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("supabase auth: %s (status %d)", e.Message, e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, bearer string, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &AuthError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.message(http.StatusText(resp.StatusCode)),
		}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SignInWithPassword performs the password grant
// (POST /auth/v1/token?grant_type=password).
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "", &session)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second)
	return &session, nil
}

// RefreshSession exchanges a refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", map[string]interface{}{
		"refresh_token": refreshToken,
	}, "", &session)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second)
	return &session, nil
}

// SignOut revokes the session server-side. GoTrue returns 204.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken, nil)
}

// Recover sends the password-reset email.
func (c *Client) Recover(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]interface{}{
		"email": email,
	}, "", nil)
}

// GetUser fetches the user behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckHealth probes GoTrue's health endpoint. The caller bounds the
// wait via ctx; a slow backend must never block auth resolution.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("supabase health: status %d", resp.StatusCode)
	}
	return nil
}
