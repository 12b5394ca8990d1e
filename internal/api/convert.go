package api

import (
	"slices"
	"strings"
	"time"

	"permavid/internal/deps"
	"permavid/internal/queue"
	"permavid/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:               item.ID,
		URL:              item.URL,
		Title:            item.Title,
		Status:           string(item.Status),
		Message:          item.Message,
		ThumbnailURL:     item.ThumbnailURL,
		LocalPath:        item.LocalPath,
		Provider:         item.Provider,
		ProviderRef:      item.ProviderRef,
		EncodingProgress: item.EncodingProgress,
	}
	if !item.AddedAt.IsZero() {
		dto.AddedAt = item.AddedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// ToQueueItem rebuilds a queue record from its API representation. Timestamps
// are parsed best-effort; the store refreshes updated_at on write anyway.
func ToQueueItem(dto QueueItem) *queue.Item {
	item := &queue.Item{
		ID:               dto.ID,
		URL:              dto.URL,
		Title:            dto.Title,
		Status:           queue.Status(strings.ToLower(strings.TrimSpace(dto.Status))),
		Message:          dto.Message,
		ThumbnailURL:     dto.ThumbnailURL,
		LocalPath:        dto.LocalPath,
		Provider:         dto.Provider,
		ProviderRef:      dto.ProviderRef,
		EncodingProgress: dto.EncodingProgress,
	}
	if ts, err := time.Parse(dateTimeFormat, dto.AddedAt); err == nil {
		item.AddedAt = ts
	}
	if ts, err := time.Parse(dateTimeFormat, dto.UpdatedAt); err == nil {
		item.UpdatedAt = ts
	}
	return item
}

// FromSettings converts persisted settings to the API payload.
func FromSettings(settings queue.Settings) Settings {
	return Settings{
		FilemoonAPIKey:    settings.FilemoonAPIKey,
		FilesVCAPIKey:     settings.FilesVCAPIKey,
		DownloadDirectory: settings.DownloadDirectory,
		DeleteAfterUpload: settings.DeleteAfterUpload,
		AutoUpload:        settings.AutoUpload,
		UploadTarget:      settings.UploadTarget,
	}
}

// ToSettings converts an API settings payload into the persisted form.
func ToSettings(payload Settings) queue.Settings {
	return queue.Settings{
		FilemoonAPIKey:    strings.TrimSpace(payload.FilemoonAPIKey),
		FilesVCAPIKey:     strings.TrimSpace(payload.FilesVCAPIKey),
		DownloadDirectory: strings.TrimSpace(payload.DownloadDirectory),
		DeleteAfterUpload: payload.DeleteAfterUpload,
		AutoUpload:        payload.AutoUpload,
		UploadTarget:      strings.TrimSpace(payload.UploadTarget),
	}
}

// FromStatusSummary converts a workflow status summary to its API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	healthNames := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		healthNames = append(healthNames, name)
	}
	slices.Sort(healthNames)

	health := make([]StageHealth, 0, len(healthNames))
	for _, name := range healthNames {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{
			Name:   name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}

	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  stats,
		StageHealth: health,
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// FromDependencyStatuses converts dependency check results to API DTOs.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromDatabaseHealth condenses store diagnostics into the health payload.
func FromDatabaseHealth(health queue.DatabaseHealth) HealthResponse {
	status := "ok"
	if !health.TableExists || !health.IntegrityCheck || health.Error != "" {
		status = "degraded"
	}
	return HealthResponse{
		Status:         status,
		DBPath:         health.DBPath,
		TableExists:    health.TableExists,
		IntegrityCheck: health.IntegrityCheck,
		TotalItems:     health.TotalItems,
		Error:          health.Error,
	}
}
