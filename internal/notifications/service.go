package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"permavid/internal/config"
)

const userAgent = "PermaVid-Go/0.1.0"

// Event identifies a notifiable workflow milestone.
type Event string

const (
	// EventDownloadCompleted fires when a queue item finishes downloading.
	EventDownloadCompleted Event = "download_completed"
	// EventUploadCompleted fires when a provider accepts an upload.
	EventUploadCompleted Event = "upload_completed"
	// EventArchiveCompleted fires when an item reaches its terminal archived state.
	EventArchiveCompleted Event = "archive_completed"
	// EventError fires on workflow failures.
	EventError Event = "error"
	// EventTest exercises the notification pipeline on demand.
	EventTest Event = "test"
)

// Payload carries event-specific values used to format the outgoing message.
type Payload map[string]string

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		downloads: cfg.Notifications.Downloads,
		uploads:   cfg.Notifications.Uploads,
		errors:    cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	downloads bool
	uploads   bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventDownloadCompleted:
		return n.downloads
	case EventUploadCompleted, EventArchiveCompleted:
		return n.uploads
	case EventError:
		return n.errors
	case EventTest:
		return true
	default:
		return false
	}
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventDownloadCompleted:
		title := get("title")
		if title == "" {
			title = get("url")
		}
		return message{
			title: "PermaVid - Download Complete",
			body:  fmt.Sprintf("⬇️ Download complete: %s", title),
			tags:  []string{"permavid", "download", "completed"},
		}, true
	case EventUploadCompleted:
		provider := get("provider")
		if provider == "" {
			provider = "provider"
		}
		title := get("title")
		if title == "" {
			title = get("url")
		}
		return message{
			title: "PermaVid - Upload Complete",
			body:  fmt.Sprintf("⬆️ Uploaded to %s: %s", provider, title),
			tags:  []string{"permavid", "upload", "completed"},
		}, true
	case EventArchiveCompleted:
		title := get("title")
		if title == "" {
			title = get("url")
		}
		return message{
			title:    "PermaVid - Archived",
			body:     fmt.Sprintf("✅ Ready to stream: %s", title),
			tags:     []string{"permavid", "archive", "completed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := get("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if errText := get("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "PermaVid - Error",
			body:     builder.String(),
			tags:     []string{"permavid", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "PermaVid - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"permavid", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
