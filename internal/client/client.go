// Package client is a typed HTTP client for the orderset API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/models"
)

// Client defines the contract for talking to an orderset server.
type Client interface {
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	List(ctx context.Context, collection string, all bool) ([]content.Entry, error)
	Get(ctx context.Context, collection string, id int64) (content.Entry, error)
	Create(ctx context.Context, collection string, body any) (content.Entry, error)
	Update(ctx context.Context, collection string, id int64, body any) (content.Entry, error)
	Delete(ctx context.Context, collection string, id int64) error
	Reorder(ctx context.Context, collection string, ids []int64) error
	Normalize(ctx context.Context, collection string) error

	// GetDocument returns a document with a nil Body when none is stored.
	GetDocument(ctx context.Context, key string) (*models.Document, error)
	PutDocument(ctx context.Context, key string, body json.RawMessage) (*models.Document, error)
}

// APIError is a non-2xx response from the server. It unwraps to the matching
// collection sentinel, so errors.Is works the same against a remote server
// as against a local store.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return collection.ErrNotFound
	case http.StatusBadRequest:
		return collection.ErrInvalidArgument
	case http.StatusServiceUnavailable:
		return collection.ErrStorageUnavailable
	}
	return nil
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP client. adminKey may be empty for read-only use.
func NewHTTPClient(baseURL, adminKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminKey:   adminKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) collectionURL(name, path string) string {
	return fmt.Sprintf("%s/api/v1/collections/%s%s", c.baseURL, url.PathEscape(name), path)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, url string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminKey != "" {
		req.Header.Set("X-Admin-Key", c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ListCollections returns every collection the server serves, with counts.
func (c *HTTPClient) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	var infos []CollectionInfo
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/collections", nil, &infos); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return infos, nil
}

// List returns the records of a collection. Only active records unless all is set.
func (c *HTTPClient) List(ctx context.Context, name string, all bool) ([]content.Entry, error) {
	u := c.collectionURL(name, "")
	if all {
		u += "?all=true"
	}
	var entries []content.Entry
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &entries); err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	return entries, nil
}

func (c *HTTPClient) Get(ctx context.Context, name string, id int64) (content.Entry, error) {
	var entry content.Entry
	if err := c.doJSON(ctx, http.MethodGet, c.collectionURL(name, "/"+strconv.FormatInt(id, 10)), nil, &entry); err != nil {
		return content.Entry{}, fmt.Errorf("get %s/%d: %w", name, id, err)
	}
	return entry, nil
}

func (c *HTTPClient) Create(ctx context.Context, name string, body any) (content.Entry, error) {
	var entry content.Entry
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(name, ""), body, &entry); err != nil {
		return content.Entry{}, fmt.Errorf("create in %s: %w", name, err)
	}
	return entry, nil
}

func (c *HTTPClient) Update(ctx context.Context, name string, id int64, body any) (content.Entry, error) {
	var entry content.Entry
	if err := c.doJSON(ctx, http.MethodPut, c.collectionURL(name, "/"+strconv.FormatInt(id, 10)), body, &entry); err != nil {
		return content.Entry{}, fmt.Errorf("update %s/%d: %w", name, id, err)
	}
	return entry, nil
}

func (c *HTTPClient) Delete(ctx context.Context, name string, id int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.collectionURL(name, "/"+strconv.FormatInt(id, 10)), nil, nil); err != nil {
		return fmt.Errorf("delete %s/%d: %w", name, id, err)
	}
	return nil
}

// Reorder sends the full new sequence for a collection.
func (c *HTTPClient) Reorder(ctx context.Context, name string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(name, "/reorder"), &ReorderRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("reorder %s: %w", name, err)
	}
	return nil
}

func (c *HTTPClient) Normalize(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodPost, c.collectionURL(name, "/normalize"), nil, nil); err != nil {
		return fmt.Errorf("normalize %s: %w", name, err)
	}
	return nil
}

func (c *HTTPClient) GetDocument(ctx context.Context, key string) (*models.Document, error) {
	var doc models.Document
	u := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, url.PathEscape(key))
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &doc); err != nil {
		return nil, fmt.Errorf("get document %s: %w", key, err)
	}
	if string(doc.Body) == "null" {
		doc.Body = nil
	}
	return &doc, nil
}

func (c *HTTPClient) PutDocument(ctx context.Context, key string, body json.RawMessage) (*models.Document, error) {
	var doc models.Document
	u := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, url.PathEscape(key))
	if err := c.doJSON(ctx, http.MethodPut, u, body, &doc); err != nil {
		return nil, fmt.Errorf("put document %s: %w", key, err)
	}
	return &doc, nil
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return &APIError{
			Code:    "unknown",
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}

	return &APIError{
		Code:    errResp.Error,
		Message: errResp.Message,
		Status:  resp.StatusCode,
	}
}
