// Package client is a typed HTTP client for the serdo API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rikouu/serdo-v2-sub001/pkg/crypto"
)

// DefaultBaseURL is used when no API base is configured.
const DefaultBaseURL = "http://localhost:4000"

// Client provides typed access to the serdo API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	// Checks can take a while on large inventories.
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e APIError) Error() string {
	switch {
	case e.Message == "":
		return fmt.Sprintf("api request failed with status %d", e.Status)
	case e.Code != "":
		return fmt.Sprintf("api request failed (%d %s): %s", e.Status, e.Code, e.Message)
	default:
		return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
	}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (c *Client) do(ctx context.Context, r request, v any) error {
	if c == nil {
		return errors.New("client is nil")
	}
	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(r.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, val := range r.headers {
		req.Header.Set(k, val)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := extractError(resp.Body)
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) APIError {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return APIError{}
	}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return APIError{Message: strings.TrimSpace(string(data))}
	}
	return APIError{Code: payload.Code, Message: strings.TrimSpace(payload.Error)}
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// User reflects API user payloads.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	}, &resp)
	return resp, err
}

// CheckItem names an entity that failed or is expiring.
type CheckItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Error         string `json:"error,omitempty"`
	State         string `json:"state,omitempty"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
}

// CheckLog is one entry of the check history.
type CheckLog struct {
	ID               string      `json:"id"`
	Timestamp        time.Time   `json:"timestamp"`
	Type             string      `json:"type"`
	Trigger          string      `json:"trigger"`
	Total            int         `json:"total"`
	Success          int         `json:"success"`
	Failed           int         `json:"failed"`
	Duration         int64       `json:"duration"`
	FailedItems      []CheckItem `json:"failedItems,omitempty"`
	ExpiringItems    []CheckItem `json:"expiringItems,omitempty"`
	Errors           []string    `json:"errors,omitempty"`
	NotificationSent bool        `json:"notificationSent"`
}

// CheckRun is the response of a manual check.
type CheckRun struct {
	Success bool              `json:"success"`
	Results []json.RawMessage `json:"results"`
	Log     CheckLog          `json:"log"`
}

// RunCheck triggers a manual check of kind "servers" or "domains".
func (c *Client) RunCheck(ctx context.Context, token, kind string) (CheckRun, error) {
	if kind != "servers" && kind != "domains" {
		return CheckRun{}, fmt.Errorf("unknown check kind %q", kind)
	}
	var run CheckRun
	err := c.do(ctx, request{method: http.MethodPost, path: "/checks/" + kind, token: token}, &run)
	return run, err
}

// SyncDomain refreshes one domain from the WHOIS API.
func (c *Client) SyncDomain(ctx context.Context, token, domainID string) (json.RawMessage, error) {
	var resp struct {
		Domain json.RawMessage `json:"domain"`
	}
	err := c.do(ctx, request{method: http.MethodPost, path: "/domains/" + url.PathEscape(domainID) + "/sync", token: token}, &resp)
	return resp.Domain, err
}

// LogPage is one page of check history.
type LogPage struct {
	Items      []CheckLog `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}

// CheckLogs fetches a page of check history. typ may be empty.
func (c *Client) CheckLogs(ctx context.Context, token string, page, pageSize int, typ string) (LogPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if typ != "" {
		q.Set("type", typ)
	}
	path := "/checks/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out LogPage
	err := c.do(ctx, request{method: http.MethodGet, path: path, token: token}, &out)
	return out, err
}

// RevealGrant is a one-time reveal key with its signed grant.
type RevealGrant struct {
	RevealKey string `json:"revealKey"`
	Grant     string `json:"grant"`
	ExpiresIn int64  `json:"expiresIn"`
}

// IssueRevealKey proves the current password and obtains a reveal key.
func (c *Client) IssueRevealKey(ctx context.Context, token, currentPassword string) (RevealGrant, error) {
	var out RevealGrant
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/reveal-key",
		token:  token,
		body:   map[string]string{"currentPassword": currentPassword},
	}, &out)
	return out, err
}

type disclosure struct {
	Empty bool   `json:"empty"`
	IV    []byte `json:"iv"`
	Tag   []byte `json:"tag"`
	Data  []byte `json:"data"`
}

// Reveal fetches one secret re-encrypted under grant's key and decrypts it
// locally. An unset secret returns "" and ok=false.
func (c *Client) Reveal(ctx context.Context, token string, grant RevealGrant, kind, id, field string) (string, bool, error) {
	key, err := base64.StdEncoding.DecodeString(grant.RevealKey)
	if err != nil {
		return "", false, fmt.Errorf("decode reveal key: %w", err)
	}
	if id == "" {
		id = "-"
	}
	var out disclosure
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   "/secrets/" + url.PathEscape(kind) + "/" + url.PathEscape(id) + "/" + url.PathEscape(field),
		token:  token,
		headers: map[string]string{
			"X-Reveal-Key":   grant.RevealKey,
			"X-Reveal-Grant": grant.Grant,
		},
	}, &out)
	if err != nil {
		return "", false, err
	}
	if out.Empty {
		return "", false, nil
	}
	plain, err := crypto.Open(key, crypto.Envelope{IV: out.IV, Tag: out.Tag, Ciphertext: out.Data})
	if err != nil {
		return "", false, fmt.Errorf("decrypt secret: %w", err)
	}
	return string(plain), true, nil
}
