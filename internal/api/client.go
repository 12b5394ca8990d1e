package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable marks transport-level failures reaching the daemon.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// APIError carries the envelope message of a failed request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Client talks to the daemon's HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the given bind address. A scheme-less bind
// like "127.0.0.1:8765" is treated as http.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Health fetches liveness and store diagnostics.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &out)
	return out, err
}

// Status fetches aggregated daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Add enqueues a URL.
func (c *Client) Add(ctx context.Context, sourceURL string) (QueueItem, error) {
	var out QueueItemResponse
	err := c.do(ctx, http.MethodPost, "/api/queue", nil, AddRequest{URL: sourceURL}, &out)
	return out.Item, err
}

// List fetches queue items, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]QueueItem, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var out QueueListResponse
	err := c.do(ctx, http.MethodGet, "/api/queue", values, nil, &out)
	return out.Items, err
}

// Gallery fetches the archive view (completed and encoded items).
func (c *Client) Gallery(ctx context.Context) ([]QueueItem, error) {
	var out QueueListResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/gallery", nil, nil, &out)
	return out.Items, err
}

// Get fetches a single item.
func (c *Client) Get(ctx context.Context, id string) (QueueItem, error) {
	var out QueueItemResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/"+url.PathEscape(id), nil, nil, &out)
	return out.Item, err
}

// Update replaces a full item record.
func (c *Client) Update(ctx context.Context, item QueueItem) (QueueItem, error) {
	var out QueueItemResponse
	err := c.do(ctx, http.MethodPut, "/api/queue/"+url.PathEscape(item.ID), nil, item, &out)
	return out.Item, err
}

// SetStatus updates status and message of one item.
func (c *Client) SetStatus(ctx context.Context, id, status, message string) error {
	payload := StatusUpdateRequest{Status: status, Message: message}
	return c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/status", nil, payload, nil)
}

// Retry re-queues a failed item.
func (c *Client) Retry(ctx context.Context, id string) (QueueItem, error) {
	var out QueueItemResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/retry", nil, nil, &out)
	return out.Item, err
}

// Cancel cancels an item, killing any in-flight transfer.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/cancel", nil, nil, nil)
}

// TriggerUpload dispatches an upload for a downloaded item.
func (c *Client) TriggerUpload(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/upload", nil, nil, nil)
}

// RestartEncoding asks the provider to re-run encoding for an item.
func (c *Client) RestartEncoding(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/restart-encoding", nil, nil, nil)
}

// Clear removes items in the given statuses and reports how many were removed.
func (c *Client) Clear(ctx context.Context, statuses ...string) (int64, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var out ClearResponse
	err := c.do(ctx, http.MethodDelete, "/api/queue", values, nil, &out)
	return out.Removed, err
}

// GetSettings fetches the persisted settings.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var out Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &out)
	return out, err
}

// SaveSettings persists new settings and returns the stored values.
func (c *Client) SaveSettings(ctx context.Context, settings Settings) (Settings, error) {
	var out Settings
	err := c.do(ctx, http.MethodPut, "/api/settings", nil, settings, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
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
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope Envelope
	if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !envelope.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// IsDaemonUnavailable reports whether err stems from the daemon being
// unreachable rather than a rejected request.
func IsDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}
