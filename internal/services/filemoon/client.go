package filemoon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"permavid/internal/fileutil"
	"permavid/internal/services"
)

const (
	defaultBaseURL       = "https://api.filemoon.sx/api"
	defaultAPITimeout    = 30 * time.Second
	defaultUploadTimeout = 30 * time.Minute
	maxResponseBytes     = 1 << 20
)

// Client calls the Filemoon REST API.
type Client struct {
	baseURL      string
	apiClient    *http.Client
	uploadClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides both the API and upload HTTP clients
// (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.apiClient = client
			c.uploadClient = client
		}
	}
}

// New constructs a Filemoon client. Zero timeouts fall back to defaults;
// an empty base URL falls back to the public API endpoint.
func New(baseURL string, requestTimeoutSeconds, uploadTimeoutSeconds int, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	apiTimeout := defaultAPITimeout
	if requestTimeoutSeconds > 0 {
		apiTimeout = time.Duration(requestTimeoutSeconds) * time.Second
	}
	uploadTimeout := defaultUploadTimeout
	if uploadTimeoutSeconds > 0 {
		uploadTimeout = time.Duration(uploadTimeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:      base,
		apiClient:    &http.Client{Timeout: apiTimeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FileInfo is the playability answer for one uploaded file.
type FileInfo struct {
	FileCode string
	Name     string
	CanPlay  bool
}

// EncodingStatus is the provider-reported encoding state for one file.
// Progress is -1 when the provider did not report a usable percentage.
type EncodingStatus struct {
	FileCode string
	State    string
	Progress int
	Error    string
}

type serverResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result string `json:"result"`
}

type uploadResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Files  []struct {
		FileCode string `json:"filecode"`
		Filename string `json:"filename"`
	} `json:"files"`
}

type fileInfoResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result []struct {
		Status   int    `json:"status"`
		FileCode string `json:"file_code"`
		Name     string `json:"name"`
		CanPlay  int    `json:"canplay"`
	} `json:"result"`
}

type encodingStatusResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result *struct {
		FileCode string          `json:"file_code"`
		Status   string          `json:"status"`
		Progress json.RawMessage `json:"progress"`
		Error    string          `json:"error"`
	} `json:"result"`
}

type restartResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// UploadServer asks the API for the dedicated upload endpoint bound to the
// given key.
func (c *Client) UploadServer(ctx context.Context, apiKey string) (string, error) {
	endpoint := c.baseURL + "/upload/server?" + url.Values{"key": {apiKey}}.Encode()
	var parsed serverResponse
	if err := c.getJSON(ctx, "upload server", endpoint, &parsed); err != nil {
		return "", err
	}
	if parsed.Status != http.StatusOK || strings.TrimSpace(parsed.Result) == "" {
		return "", services.Wrap(services.ErrProvider, "filemoon", "upload server",
			fmt.Sprintf("Filemoon upload-server API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	return parsed.Result, nil
}

// Upload POSTs the local file to the upload server URL and returns the
// provider filecode. The filename is sanitized before transmission; Filemoon
// mishandles raw titles in form metadata.
func (c *Client) Upload(ctx context.Context, uploadURL, apiKey, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "filemoon", "upload", "Failed to open file", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("key", apiKey); err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to prepare Filemoon upload form", err)
	}
	field, err := writer.CreateFormFile("file", fileutil.SanitizeFileName(filepath.Base(localPath)))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to prepare Filemoon upload form", err)
	}
	if _, err := io.Copy(field, file); err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to read local file", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to prepare Filemoon upload form", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to build Filemoon upload request", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(request)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Filemoon upload request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "filemoon", "upload", "Failed to read Filemoon upload response", err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", services.Wrap(services.ErrProvider, "filemoon", "upload",
			fmt.Sprintf("Failed to parse Filemoon upload response (http %d): %s", resp.StatusCode, snippet(payload)), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices || parsed.Status != http.StatusOK {
		return "", services.Wrap(services.ErrProvider, "filemoon", "upload",
			fmt.Sprintf("Filemoon upload API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	if len(parsed.Files) == 0 {
		return "", services.Wrap(services.ErrProvider, "filemoon", "upload",
			"Filemoon upload response contained no files", nil)
	}
	return parsed.Files[0].FileCode, nil
}

// FileInfoFor reports the playability of an uploaded file. A nil error with
// CanPlay false means the provider answered but the file is not ready yet;
// any failure to obtain a definite answer is an error so the caller can fall
// back to the encoding-status probe.
func (c *Client) FileInfoFor(ctx context.Context, apiKey, fileCode string) (FileInfo, error) {
	endpoint := c.baseURL + "/file/info?" + url.Values{"key": {apiKey}, "file_code": {fileCode}}.Encode()
	var parsed fileInfoResponse
	if err := c.getJSON(ctx, "file info", endpoint, &parsed); err != nil {
		return FileInfo{}, err
	}
	if parsed.Status != http.StatusOK {
		return FileInfo{}, services.Wrap(services.ErrProvider, "filemoon", "file info",
			fmt.Sprintf("Filemoon file-info API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	if len(parsed.Result) == 0 {
		return FileInfo{}, services.Wrap(services.ErrProvider, "filemoon", "file info",
			"Filemoon file-info response missing result array", nil)
	}
	for _, entry := range parsed.Result {
		if entry.FileCode != fileCode {
			continue
		}
		return FileInfo{
			FileCode: entry.FileCode,
			Name:     entry.Name,
			CanPlay:  entry.Status == http.StatusOK && entry.CanPlay == 1,
		}, nil
	}
	return FileInfo{}, services.Wrap(services.ErrProvider, "filemoon", "file info",
		fmt.Sprintf("Filemoon file-info response does not mention filecode %s", fileCode), nil)
}

// EncodingStatusFor returns the provider's encoding state for the file.
// A (nil, nil) return means the provider accepted the call but supplied no
// result; the caller should leave the item untouched and poll again later.
func (c *Client) EncodingStatusFor(ctx context.Context, apiKey, fileCode string) (*EncodingStatus, error) {
	endpoint := c.baseURL + "/encoding/status?" + url.Values{"key": {apiKey}, "file_code": {fileCode}}.Encode()
	var parsed encodingStatusResponse
	if err := c.getJSON(ctx, "encoding status", endpoint, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != http.StatusOK {
		return nil, services.Wrap(services.ErrProvider, "filemoon", "encoding status",
			fmt.Sprintf("Filemoon encoding-status API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	if parsed.Result == nil {
		return nil, nil
	}
	return &EncodingStatus{
		FileCode: parsed.Result.FileCode,
		State:    strings.ToUpper(strings.TrimSpace(parsed.Result.Status)),
		Progress: parseProgressField(parsed.Result.Progress),
		Error:    parsed.Result.Error,
	}, nil
}

// RestartEncoding asks the provider to re-run encoding for the file.
func (c *Client) RestartEncoding(ctx context.Context, apiKey, fileCode string) error {
	form := url.Values{"key": {apiKey}, "file_code": {fileCode}}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/restart",
		strings.NewReader(form.Encode()))
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", "restart encoding", "Failed to build Filemoon restart request", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.apiClient.Do(request)
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", "restart encoding", "Filemoon restart request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", "restart encoding", "Failed to read Filemoon restart response", err)
	}
	var parsed restartResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return services.Wrap(services.ErrProvider, "filemoon", "restart encoding",
			fmt.Sprintf("Failed to parse Filemoon restart response (http %d): %s", resp.StatusCode, snippet(payload)), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices || parsed.Status != http.StatusOK {
		return services.Wrap(services.ErrProvider, "filemoon", "restart encoding",
			fmt.Sprintf("Filemoon restart API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", operation,
			fmt.Sprintf("Failed to build Filemoon %s request", operation), err)
	}
	resp, err := c.apiClient.Do(request)
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", operation,
			fmt.Sprintf("Filemoon %s request failed", operation), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return services.Wrap(services.ErrTransient, "filemoon", operation,
			fmt.Sprintf("Failed to read Filemoon %s response", operation), err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return services.Wrap(services.ErrProvider, "filemoon", operation,
			fmt.Sprintf("Failed to parse Filemoon %s response (http %d): %s", operation, resp.StatusCode, snippet(payload)), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrProvider, "filemoon", operation,
			fmt.Sprintf("Filemoon %s HTTP error (status %d): %s", operation, resp.StatusCode, snippet(payload)), nil)
	}
	return nil
}

// parseProgressField tolerates numeric, quoted, and absent progress values.
func parseProgressField(raw json.RawMessage) int {
	trimmed := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if trimmed == "" || trimmed == "null" {
		return -1
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1
	}
	return n
}

func snippet(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}
