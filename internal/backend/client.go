package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Doer issues HTTP requests; satisfied by *http.Client
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource provides the bearer token for authenticated requests and
// clears it when the backend rejects it
type TokenSource interface {
	// Token returns the current session token
	Token() (string, error)

	// Clear removes the stored token
	Clear() error
}

// APIError is a non-2xx response from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Client wraps the receipt backend's REST API. It holds no receipt state;
// every method issues one request and decodes one response.
type Client struct {
	baseURL string
	doer    Doer
	tokens  TokenSource
}

// New creates a Client using the default HTTP client. No request timeout is
// configured; cancellation comes from the caller's context.
func New(baseURL string, tokens TokenSource) *Client {
	return NewWithDoer(baseURL, tokens, http.DefaultClient)
}

// NewWithDoer creates a Client with a custom Doer for testing
func NewWithDoer(baseURL string, tokens TokenSource, doer Doer) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		doer:    doer,
		tokens:  tokens,
	}
}

// newRequest builds a request against the backend base URL
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return req, nil
}

// newAuthRequest builds a request carrying the session bearer token. It
// fails before any network activity when no token is stored.
func (c *Client) newAuthRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do sends a request and decodes a 2xx JSON body into out (out may be nil).
// Non-2xx responses become an *APIError with the body's message field when
// one is present. A 401 also clears the stored token.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			if clearErr := c.tokens.Clear(); clearErr != nil {
				slog.Warn("Failed to clear session after 401", "error", clearErr)
			}
		}
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON sends a JSON body and decodes the response
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// readErrorMessage opportunistically pulls a human-readable message out of
// an error body. Bodies that are not JSON, or carry neither field, yield "".
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
