package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/example/receipt-console/internal/receipt"
)

// ListQuery are the filter parameters for a receipt list fetch. Zero
// values are omitted from the query string.
type ListQuery struct {
	Status    receipt.Tab
	SortBy    receipt.SortKey
	SortOrder receipt.SortOrder
	Search    string
}

// Encode renders the query exactly as the backend expects it
func (q ListQuery) Encode() string {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", string(q.Status))
	}
	if q.SortBy != "" {
		values.Set("sortBy", string(q.SortBy))
	}
	if q.SortOrder != "" {
		values.Set("sortOrder", string(q.SortOrder))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	return values.Encode()
}

// ListResult is a receipt list fetch response
type ListResult struct {
	Receipts []*receipt.ReceiptFile `json:"receipts"`
	Stats    receipt.ListStats      `json:"stats"`
}

// ListReceipts fetches the receipt list and its aggregate counters
func (c *Client) ListReceipts(ctx context.Context, query ListQuery) (*ListResult, error) {
	path := "/receipts"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := c.newAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var result ListResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	if result.Receipts == nil {
		result.Receipts = []*receipt.ReceiptFile{}
	}
	return &result, nil
}

// UploadResult is the backend's response to a file upload
type UploadResult struct {
	Message string               `json:"message"`
	ID      string               `json:"id"`
	Receipt *receipt.ReceiptFile `json:"receipt"`
}

// Upload sends one file as multipart form data under the "file" field
func (c *Client) Upload(ctx context.Context, filename string, data io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("reading file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finishing multipart form: %w", err)
	}

	req, err := c.newAuthRequest(ctx, http.MethodPost, "/receipts/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	return &result, nil
}

// Validate asks the backend to validate an uploaded file
func (c *Client) Validate(ctx context.Context, id string) error {
	req, err := c.newAuthRequest(ctx, http.MethodPost, "/receipts/"+url.PathEscape(id)+"/validate", nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("validating receipt %s: %w", id, err)
	}
	return nil
}

// ProcessResult is the in-body outcome of a process request. The backend
// can report extraction failure inside a 200 response, so a non-nil result
// with Succeeded()==false is not an error at the transport level.
type ProcessResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Succeeded reports whether extraction completed
func (r *ProcessResult) Succeeded() bool {
	return r.Status != "failed" && r.Status != "error"
}

// Process asks the backend to run extraction on a validated file
func (c *Client) Process(ctx context.Context, id string) (*ProcessResult, error) {
	req, err := c.newAuthRequest(ctx, http.MethodPost, "/receipts/"+url.PathEscape(id)+"/process", nil)
	if err != nil {
		return nil, err
	}
	var result ProcessResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("processing receipt %s: %w", id, err)
	}
	return &result, nil
}

// Delete removes a receipt file and its extracted data
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newAuthRequest(ctx, http.MethodDelete, "/receipts/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("deleting receipt %s: %w", id, err)
	}
	return nil
}

// Stats fetches the server-computed spend aggregates
func (c *Client) Stats(ctx context.Context) (*receipt.SpendStats, error) {
	req, err := c.newAuthRequest(ctx, http.MethodGet, "/receipts/stats", nil)
	if err != nil {
		return nil, err
	}
	var stats receipt.SpendStats
	if err := c.do(req, &stats); err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	return &stats, nil
}
