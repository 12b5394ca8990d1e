package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"permavid/internal/api"
	"permavid/internal/queue"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.store.CheckHealth(r.Context())
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	s.writeSuccess(w, "Health check completed", api.FromDatabaseHealth(health))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencyStatuses(status.Dependencies),
	}
	s.writeSuccess(w, "Daemon status retrieved successfully", payload)
}

func (s *apiServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sourceURL := strings.TrimSpace(req.URL)
	if sourceURL == "" {
		s.writeError(w, http.StatusBadRequest, "URL cannot be empty")
		return
	}

	item, err := s.daemon.store.Add(r.Context(), sourceURL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Item added to queue successfully", api.QueueItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatusFilters(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Queue items retrieved successfully", api.QueueListResponse{Items: api.FromQueueItems(items)})
}

func (s *apiServer) handleGallery(w http.ResponseWriter, r *http.Request) {
	items, err := s.daemon.store.Gallery(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Gallery items retrieved successfully", api.QueueListResponse{Items: api.FromQueueItems(items)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Item %s not found.", id))
		return
	}
	s.writeSuccess(w, "Queue item retrieved successfully", api.QueueItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto api.QueueItem
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dto.ID = id

	if err := s.daemon.store.Update(r.Context(), api.ToQueueItem(dto)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	updated, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Item %s not found.", id))
		return
	}
	s.writeSuccess(w, "Queue item updated successfully", api.QueueItemResponse{Item: api.FromQueueItem(updated)})
}

func (s *apiServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := queue.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.store.UpdateStatus(r.Context(), id, status, req.Message); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Status updated successfully", nil)
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.daemon.store.Retry(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("Retry failed: Item %s not found.", id))
			return
		}
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Item re-queued for processing.", api.QueueItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.workflow.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Item cancelled successfully", nil)
}

// handleUpload dispatches the transfer and returns as soon as the item is
// marked uploading; progress lands on the item record.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.daemon.workflow.TriggerUpload(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, fmt.Sprintf("Upload started for item %s", id), nil)
}

func (s *apiServer) handleRestartEncoding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Restart encoding failed: Item %s not found.", id))
		return
	}
	if err := s.daemon.workflow.RestartEncoding(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, fmt.Sprintf("Successfully requested encoding restart for filecode %s", strings.TrimSpace(item.ProviderRef)), nil)
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatusFilters(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(statuses) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one status filter is required")
		return
	}
	removed, err := s.daemon.store.ClearByStatus(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Items cleared successfully", api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.daemon.store.GetSettings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Settings retrieved successfully", api.FromSettings(settings))
}

func (s *apiServer) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var payload api.Settings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.store.SaveSettings(r.Context(), api.ToSettings(payload)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	saved, err := s.daemon.store.GetSettings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSuccess(w, "Settings saved successfully", api.FromSettings(saved))
}

// parseStatusFilters reads repeatable and comma-separated status query
// parameters.
func parseStatusFilters(r *http.Request) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := queue.ParseStatus(part)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}
