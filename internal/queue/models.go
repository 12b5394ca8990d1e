package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusCompleted    Status = "completed"
	StatusUploading    Status = "uploading"
	StatusTransferring Status = "transferring"
	StatusEncoding     Status = "encoding"
	StatusEncoded      Status = "encoded"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Provider identifiers persisted on items that hold a remote copy.
const (
	ProviderFilemoon = "filemoon"
	ProviderFilesVC  = "files_vc"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusCompleted,
	StatusUploading,
	StatusTransferring,
	StatusEncoding,
	StatusEncoded,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingStatuses are the states owned by the local machine; the scheduler
// admits new work only while no item is in one of them.
var processingStatuses = map[Status]struct{}{
	StatusDownloading: {},
	StatusUploading:   {},
}

// remoteStatuses are the states waiting on the hosting provider; the readiness
// sweep polls items in them.
var remoteStatuses = map[Status]struct{}{
	StatusTransferring: {},
	StatusEncoding:     {},
}

// terminalStatuses never leave on their own; failed items can re-enter via Retry.
var terminalStatuses = map[Status]struct{}{
	StatusEncoded:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// AllStatuses returns every recognized status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ProcessingStatuses returns the states that occupy the local transfer slot.
func ProcessingStatuses() []Status {
	return []Status{StatusDownloading, StatusUploading}
}

// RemoteStatuses returns the states polled by the readiness sweep.
func RemoteStatuses() []Status {
	return []Status{StatusTransferring, StatusEncoding}
}

// GalleryStatuses returns the states shown in the archive gallery.
func GalleryStatuses() []Status {
	return []Status{StatusCompleted, StatusEncoded}
}

// ParseStatus validates raw status input from CLI flags or API payloads.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := statusSet[candidate]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return candidate, nil
}

// IsProcessing reports whether the status occupies the local transfer slot.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// IsRemote reports whether the status is waiting on the hosting provider.
func (s Status) IsRemote() bool {
	_, ok := remoteStatuses[s]
	return ok
}

// IsTerminal reports whether the status ends the item's lifecycle.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Item is a single archival job tracked by the queue.
type Item struct {
	ID               string
	URL              string
	Status           Status
	Message          string
	Title            string
	ThumbnailURL     string
	LocalPath        string
	Provider         string
	ProviderRef      string
	EncodingProgress int
	AddedAt          time.Time
	UpdatedAt        time.Time
}

// HasRemoteCopy reports whether a provider acknowledged receiving the file.
// Items with a remote copy are never eligible for retry.
func (i *Item) HasRemoteCopy() bool {
	return strings.TrimSpace(i.ProviderRef) != ""
}

// Retryable reports whether Retry may re-queue this item.
func (i *Item) Retryable() bool {
	return i.Status == StatusFailed && !i.HasRemoteCopy()
}

// SetFailed marks the item failed with a diagnostic message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.Message = message
}

// DisplayTitle returns the resolved title, falling back to the source URL
// before the download populates one.
func (i *Item) DisplayTitle() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return i.URL
}

// Settings are the runtime knobs persisted alongside the queue. They are
// saved as a whole; absent values mean "use the built-in default".
type Settings struct {
	FilemoonAPIKey    string
	FilesVCAPIKey     string
	DownloadDirectory string
	DeleteAfterUpload bool
	AutoUpload        bool
	UploadTarget      string
}

// APIKeyFor returns the stored key for a provider identifier.
func (s Settings) APIKeyFor(provider string) string {
	switch provider {
	case ProviderFilemoon:
		return s.FilemoonAPIKey
	case ProviderFilesVC:
		return s.FilesVCAPIKey
	}
	return ""
}

// StatusCheck is one unit of readiness-poll work: an item awaiting remote
// encoding plus the credentials needed to ask the provider about it.
type StatusCheck struct {
	ItemID      string
	ProviderRef string
	APIKey      string
}

// HealthSummary aggregates queue state for status output.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Remote     int
	Completed  int
	Archived   int
	Failed     int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	TotalItems       int
	SchemaVersion    string
	IntegrityCheck   bool
	Error            string
}
