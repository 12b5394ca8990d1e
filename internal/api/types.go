package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the uniform response wrapper for every endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Title            string `json:"title,omitempty"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	LocalPath        string `json:"localPath,omitempty"`
	Provider         string `json:"provider,omitempty"`
	ProviderRef      string `json:"providerRef,omitempty"`
	EncodingProgress int    `json:"encodingProgress"`
	AddedAt          string `json:"addedAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// Settings mirrors the persisted runtime settings.
type Settings struct {
	FilemoonAPIKey    string `json:"filemoonApiKey"`
	FilesVCAPIKey     string `json:"filesvcApiKey"`
	DownloadDirectory string `json:"downloadDirectory"`
	DeleteAfterUpload bool   `json:"deleteAfterUpload"`
	AutoUpload        bool   `json:"autoUpload"`
	UploadTarget      string `json:"uploadTarget"`
}

// AddRequest enqueues a new source URL.
type AddRequest struct {
	URL string `json:"url"`
}

// StatusUpdateRequest sets the status (and optional message) of one item.
type StatusUpdateRequest struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	LogPath      string             `json:"logPath,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HealthResponse reports liveness plus queue database diagnostics.
type HealthResponse struct {
	Status         string `json:"status"`
	DBPath         string `json:"dbPath"`
	TableExists    bool   `json:"tableExists"`
	IntegrityCheck bool   `json:"integrityCheck"`
	TotalItems     int    `json:"totalItems"`
	Error          string `json:"error,omitempty"`
}

// QueueListResponse wraps a collection of queue items.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// ClearResponse reports the number of removed entries.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}
