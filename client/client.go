// Package client implements the browser-side authentication flow as a Go
// library: wallet connection, nonce fetch, challenge signing, token
// persistence and the API calls behind them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/delinked/delinked/core"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Client is a typed REST client for the delinked API. Requests to protected
// endpoints carry the bearer token held by the TokenStore.
type Client struct {
	baseURL string
	tokens  TokenStore
	http    *http.Client
}

// NewClient creates an API client. baseURL points at the server root, e.g.
// "http://localhost:5000".
func NewClient(baseURL string, tokens TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NonceResponse mirrors GET /api/auth/nonce/{address}.
type NonceResponse struct {
	Nonce     string `json:"nonce"`
	IsNewUser bool   `json:"isNewUser"`
	Role      string `json:"role,omitempty"`
}

// AuthenticateRequest mirrors POST /api/auth/authenticate.
type AuthenticateRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
	Role      string `json:"role,omitempty"`
}

// UserInfo is the identity view the server returns.
type UserInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// AuthenticateResponse mirrors a successful authentication.
type AuthenticateResponse struct {
	Token     string   `json:"token"`
	User      UserInfo `json:"user"`
	IsNewUser bool     `json:"isNewUser"`
}

// Profile mirrors the role-shaped profile view.
type Profile struct {
	UserID           string    `json:"userId"`
	Role             string    `json:"role"`
	Name             string    `json:"name,omitempty"`
	OrganizationName string    `json:"organizationName,omitempty"`
	Email            string    `json:"email,omitempty"`
	Skills           []string  `json:"skills,omitempty"`
	Experience       int       `json:"experience,omitempty"`
	Completed        bool      `json:"profileCompleted"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProfileUpdate carries a profile replacement.
type ProfileUpdate struct {
	Name             string   `json:"name"`
	OrganizationName string   `json:"organizationName,omitempty"`
	Email            string   `json:"email"`
	Skills           []string `json:"skills,omitempty"`
	Experience       int      `json:"experience,omitempty"`
}

// Nonce requests a challenge for an address.
func (c *Client) Nonce(ctx context.Context, address string) (*NonceResponse, error) {
	var out NonceResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth/nonce/"+address, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Authenticate exchanges a signed challenge for a session token.
func (c *Client) Authenticate(ctx context.Context, req AuthenticateRequest) (*AuthenticateResponse, error) {
	var out AuthenticateResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/authenticate", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the identity behind the stored token.
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var out struct {
		User UserInfo `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, true, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// GetProfile fetches the profile for a role's endpoint.
func (c *Client) GetProfile(ctx context.Context, role core.Role) (*Profile, error) {
	var out struct {
		Profile Profile `json:"profile"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/"+string(role)+"s/profile", nil, true, &out); err != nil {
		return nil, err
	}
	return &out.Profile, nil
}

// UpdateProfile replaces the profile for a role's endpoint.
func (c *Client) UpdateProfile(ctx context.Context, role core.Role, update ProfileUpdate) (*Profile, error) {
	var out struct {
		Profile Profile `json:"profile"`
	}
	if err := c.call(ctx, http.MethodPut, "/api/"+string(role)+"s/profile", update, true, &out); err != nil {
		return nil, err
	}
	return &out.Profile, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := c.tokens.Load()
		if err != nil {
			return fmt.Errorf("failed to load token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
