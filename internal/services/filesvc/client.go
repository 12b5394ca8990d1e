package filesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"permavid/internal/fileutil"
	"permavid/internal/services"
)

const (
	defaultBaseURL       = "https://api.files.vc"
	defaultUploadTimeout = 30 * time.Minute
	maxResponseBytes     = 1 << 20
)

// Client calls the Files.vc REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a Files.vc client. A zero timeout falls back to the default;
// an empty base URL falls back to the public API endpoint.
func New(baseURL string, uploadTimeoutSeconds int, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := defaultUploadTimeout
	if uploadTimeoutSeconds > 0 {
		timeout = time.Duration(uploadTimeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// UploadResult carries the stored file's identifiers.
type UploadResult struct {
	FileCode string
	URL      string
}

type uploadResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result *struct {
		FileCode string `json:"file_code"`
		URL      string `json:"url"`
	} `json:"result"`
}

// Upload POSTs the local file and returns its permanent URL. The filename is
// sanitized before transmission.
func (c *Client) Upload(ctx context.Context, apiKey, localPath string) (UploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrValidation, "filesvc", "upload", "Failed to open file", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("key", apiKey); err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to prepare Files.vc upload form", err)
	}
	field, err := writer.CreateFormFile("file", fileutil.SanitizeFileName(filepath.Base(localPath)))
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to prepare Files.vc upload form", err)
	}
	if _, err := io.Copy(field, file); err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to read local file", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to prepare Files.vc upload form", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to build Files.vc upload request", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Files.vc request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrTransient, "filesvc", "upload", "Failed to read Files.vc response", err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return UploadResult{}, services.Wrap(services.ErrProvider, "filesvc", "upload",
			fmt.Sprintf("Failed to parse Files.vc response (http %d): %s", resp.StatusCode, snippet(payload)), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices || parsed.Status != http.StatusOK {
		return UploadResult{}, services.Wrap(services.ErrProvider, "filesvc", "upload",
			fmt.Sprintf("Files.vc API error (status %d): %s", parsed.Status, parsed.Msg), nil)
	}
	if parsed.Result == nil {
		return UploadResult{}, services.Wrap(services.ErrProvider, "filesvc", "upload",
			"Files.vc response missing file details", nil)
	}
	return UploadResult{FileCode: parsed.Result.FileCode, URL: parsed.Result.URL}, nil
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
