// Package client is the Go client for the visitor management API. Both the
// issuer and verifier frontends consume the same surface; the only difference
// is the expected role they log in with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JeffCSZ/vms/internal/gate"
	"github.com/JeffCSZ/vms/internal/model"
)

// APIError is a non-2xx response decoded from the standard error envelope.
type APIError struct {
	Status  int
	Code    int
	Message string
	Context map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Category returns the error category from the context, e.g.
// "authentication" on any 401.
func (e *APIError) Category() string {
	s, _ := e.Context["category"].(string)
	return s
}

// Reason returns the structured denial reason from the context, e.g.
// "wrong_role" or "not_owner" on a 403.
func (e *APIError) Reason() string {
	s, _ := e.Context["reason"].(string)
	return s
}

// AuthPayload is the decoded register/login response.
type AuthPayload struct {
	Token       string     `json:"token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        model.Role `json:"role"`
	UnitNo      string     `json:"unit_no"`
	StreetNo    string     `json:"street_no"`
}

// ScannedRequest is a visitor request as returned by the code lookup,
// carrying its classification at lookup time.
type ScannedRequest struct {
	model.VisitorRequest
	Status gate.Outcome `json:"status"`
}

// RequestParams are the writable fields of a visitor request.
type RequestParams struct {
	VisitorName    string    `json:"visitor_name"`
	VehiclePlate   string    `json:"vehicle_plate"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ValidUntil     time.Time `json:"valid_until"`
}

// RegisterParams are the inputs for account registration.
type RegisterParams struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	UnitNo   string     `json:"unit_no,omitempty"`
	StreetNo string     `json:"street_no,omitempty"`
}

// Client calls the visitor management API. Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	session *Session
}

// New creates a Client for the given base URL (scheme and host, no trailing
// path). A nil httpc falls back to a client with a 30s timeout.
func New(baseURL string, httpc *http.Client, session *Session) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if session == nil {
		session = NewSession()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		session: session,
	}
}

// Session returns the session this client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// Register creates an account and adopts its token for the session.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*AuthPayload, error) {
	var out AuthPayload
	if err := c.do(ctx, http.MethodPost, "/api/v1/account/register", params, &out); err != nil {
		return nil, err
	}
	c.session.SetToken(out.Token)
	return &out, nil
}

// Login authenticates and adopts the returned token for the session.
// expectedRole guards against logging into the wrong app; pass "" to skip
// the check.
func (c *Client) Login(ctx context.Context, email, password string, expectedRole model.Role) (*AuthPayload, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if expectedRole != "" {
		body["expected_role"] = string(expectedRole)
	}
	var out AuthPayload
	if err := c.do(ctx, http.MethodPost, "/api/v1/account/login", body, &out); err != nil {
		return nil, err
	}
	c.session.SetToken(out.Token)
	return &out, nil
}

// Logout tells the server the session ended and drops the local token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/account/logout", struct{}{}, nil)
	c.session.Clear()
	return err
}

// CreateRequest issues a new visitor request.
func (c *Client) CreateRequest(ctx context.Context, params RequestParams) (*model.VisitorRequest, error) {
	var out model.VisitorRequest
	if err := c.do(ctx, http.MethodPost, "/api/v1/requests", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOwnRequests lists the caller's requests, newest first.
func (c *Client) ListOwnRequests(ctx context.Context) ([]model.VisitorRequest, error) {
	return c.listRequests(ctx, "/api/v1/requests")
}

// ListAllRequests lists every request, newest first. Verifier only.
func (c *Client) ListAllRequests(ctx context.Context) ([]model.VisitorRequest, error) {
	return c.listRequests(ctx, "/api/v1/requests/all")
}

func (c *Client) listRequests(ctx context.Context, path string) ([]model.VisitorRequest, error) {
	var out struct {
		Resource []model.VisitorRequest `json:"resource"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Resource, nil
}

// GetRequest fetches a single request by its internal ID.
func (c *Client) GetRequest(ctx context.Context, id int64) (*model.VisitorRequest, error) {
	var out model.VisitorRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/requests/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRequestByCode resolves a scanned payload. The raw scan is parsed
// locally first so malformed scans never leave the device.
func (c *Client) GetRequestByCode(ctx context.Context, rawScan string) (*ScannedRequest, error) {
	code, err := gate.ParseScannedCode(rawScan)
	if err != nil {
		return nil, err
	}
	var out ScannedRequest
	if err := c.do(ctx, http.MethodGet, "/api/v1/requests/code/"+url.PathEscape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRequest replaces the editable fields of a request.
func (c *Client) UpdateRequest(ctx context.Context, id int64, params RequestParams) (*model.VisitorRequest, error) {
	var out model.VisitorRequest
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/requests/%d", id), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRequest removes a request.
func (c *Client) DeleteRequest(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/requests/%d", id), nil, nil)
}

// do performs one API call: marshal body, attach the bearer token, decode
// the response into out. A 401 whose category is "authentication" reports
// the session as expired, which fires the session's recovery hook at most
// once per token.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode == http.StatusUnauthorized && apiErr.Category() == "authentication" {
			c.session.reportExpired()
		}
		return apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    resp.StatusCode,
		Message: resp.Status,
	}
	var envelope struct {
		Error struct {
			Code    int            `json:"code"`
			Message string         `json:"message"`
			Context map[string]any `json:"context"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Context = envelope.Error.Context
	}
	return apiErr
}
