// Package client talks to the octopad HTTP API. It satisfies syncer.Remote so
// a device can run the sync coordinator against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/octopad/internal/api"
	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/authpw"
	"github.com/starford/octopad/internal/models"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Client is an API client bound to one server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for serverURL, e.g. "http://localhost:8080".
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid server url %q", serverURL)
	}
	c := &Client{
		base: u.String() + "/api",
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError is returned for a non-2xx response that does not map onto apperr.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.Code, e.Message)
}

func (c *Client) UserTiers(ctx context.Context, userID string) ([]models.Tier, error) {
	var resp api.UserTiersResponse
	if err := c.do(ctx, http.MethodGet, userPath(userID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tiers == nil {
		resp.Tiers = []models.Tier{}
	}
	return resp.Tiers, nil
}

func (c *Client) SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error {
	return c.do(ctx, http.MethodPost, userPath(userID), api.SaveUserTiersRequest{Tiers: tiers}, nil)
}

func (c *Client) DeleteUserTier(ctx context.Context, userID, key string) error {
	return c.do(ctx, http.MethodDelete, userPath(userID)+"/"+url.PathEscape(key), nil, nil)
}

func (c *Client) UpdateTierOrder(ctx context.Context, userID string, tierIDs []string) error {
	return c.do(ctx, http.MethodPost, userPath(userID)+"/order", api.TierOrderRequest{TierIDs: tierIDs}, nil)
}

func (c *Client) SharedTier(ctx context.Context, code string) (models.Tier, error) {
	var resp api.SharedTierResponse
	q := url.Values{"code": {code}}
	if err := c.do(ctx, http.MethodGet, "/tiers/shared?"+q.Encode(), nil, &resp); err != nil {
		return models.Tier{}, err
	}
	return resp.Tier, nil
}

func (c *Client) SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error {
	return c.do(ctx, http.MethodPost, "/tiers/shared", api.SaveSharedTierRequest{Tier: tier, UserID: ownerID}, nil)
}

func (c *Client) DeleteSharedTier(ctx context.Context, ownerID, code string) error {
	q := url.Values{"code": {code}}
	if ownerID != "" {
		q.Set("userId", ownerID)
	}
	return c.do(ctx, http.MethodDelete, "/tiers/shared?"+q.Encode(), nil, nil)
}

// SyncUser upserts a profile and, when tiers is non-nil, the user's tiers.
func (c *Client) SyncUser(ctx context.Context, user models.User, tiers []models.Tier) error {
	req := api.SyncUserRequest{UserID: user.ID, Email: user.Email, Name: user.Name, Image: user.Image, Tiers: tiers}
	return c.do(ctx, http.MethodPost, "/users/sync", req, nil)
}

// Register creates an account and returns its user id.
func (c *Client) Register(ctx context.Context, req authpw.RegisterRequest) (string, error) {
	var resp api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func userPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/tiers"
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

type errorPayload struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func decodeError(resp *http.Response) error {
	var p errorPayload
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &p); err != nil || p.Error == "" {
		p.Error = strings.TrimSpace(string(data))
	}

	switch {
	case len(p.Fields) > 0:
		return &apperr.ValidationError{Fields: p.Fields}
	case resp.StatusCode == http.StatusNotFound:
		return apperr.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", p.Error, apperr.ErrConflict)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return errors.Join(apperr.ErrUnconfigured, &StatusError{Code: resp.StatusCode, Message: p.Error})
	default:
		return &StatusError{Code: resp.StatusCode, Message: p.Error}
	}
}
