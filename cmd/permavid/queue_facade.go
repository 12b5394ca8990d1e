package main

import (
	"context"
	"errors"
	"fmt"

	"permavid/internal/api"
	"permavid/internal/queue"
)

// queueClient is the queue surface shared by the HTTP and direct-store paths.
// Get returns (nil, nil) for an unknown item on both paths.
type queueClient interface {
	Add(ctx context.Context, url string) (api.QueueItem, error)
	List(ctx context.Context, statuses ...string) ([]api.QueueItem, error)
	Gallery(ctx context.Context) ([]api.QueueItem, error)
	Get(ctx context.Context, id string) (*api.QueueItem, error)
	Retry(ctx context.Context, id string) (api.QueueItem, error)
	Cancel(ctx context.Context, id string) error
	TriggerUpload(ctx context.Context, id string) error
	RestartEncoding(ctx context.Context, id string) error
	Clear(ctx context.Context, statuses ...string) (int64, error)
	GetSettings(ctx context.Context) (api.Settings, error)
	SaveSettings(ctx context.Context, settings api.Settings) (api.Settings, error)
}

// errDaemonRequired marks operations that dispatch work inside the daemon
// process and therefore have no offline equivalent.
func errDaemonRequired(operation string) error {
	return fmt.Errorf("%s requires a running daemon; start it with `permavid daemon start`", operation)
}

// --- HTTP adapter ---

type httpQueue struct {
	client *api.Client
}

func (q *httpQueue) Add(ctx context.Context, url string) (api.QueueItem, error) {
	return q.client.Add(ctx, url)
}

func (q *httpQueue) List(ctx context.Context, statuses ...string) ([]api.QueueItem, error) {
	return q.client.List(ctx, statuses...)
}

func (q *httpQueue) Gallery(ctx context.Context) ([]api.QueueItem, error) {
	return q.client.Gallery(ctx)
}

func (q *httpQueue) Get(ctx context.Context, id string) (*api.QueueItem, error) {
	item, err := q.client.Get(ctx, id)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (q *httpQueue) Retry(ctx context.Context, id string) (api.QueueItem, error) {
	return q.client.Retry(ctx, id)
}

func (q *httpQueue) Cancel(ctx context.Context, id string) error {
	return q.client.Cancel(ctx, id)
}

func (q *httpQueue) TriggerUpload(ctx context.Context, id string) error {
	return q.client.TriggerUpload(ctx, id)
}

func (q *httpQueue) RestartEncoding(ctx context.Context, id string) error {
	return q.client.RestartEncoding(ctx, id)
}

func (q *httpQueue) Clear(ctx context.Context, statuses ...string) (int64, error) {
	return q.client.Clear(ctx, statuses...)
}

func (q *httpQueue) GetSettings(ctx context.Context) (api.Settings, error) {
	return q.client.GetSettings(ctx)
}

func (q *httpQueue) SaveSettings(ctx context.Context, settings api.Settings) (api.Settings, error) {
	return q.client.SaveSettings(ctx, settings)
}

// --- Store adapter ---

type storeQueue struct {
	store *queue.Store
}

func (q *storeQueue) Add(ctx context.Context, url string) (api.QueueItem, error) {
	item, err := q.store.Add(ctx, url)
	if err != nil {
		return api.QueueItem{}, err
	}
	return api.FromQueueItem(item), nil
}

func (q *storeQueue) List(ctx context.Context, statuses ...string) ([]api.QueueItem, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	items, err := q.store.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	return api.FromQueueItems(items), nil
}

func (q *storeQueue) Gallery(ctx context.Context) ([]api.QueueItem, error) {
	items, err := q.store.Gallery(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromQueueItems(items), nil
}

func (q *storeQueue) Get(ctx context.Context, id string) (*api.QueueItem, error) {
	item, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (q *storeQueue) Retry(ctx context.Context, id string) (api.QueueItem, error) {
	item, err := q.store.Retry(ctx, id)
	if err != nil {
		return api.QueueItem{}, err
	}
	return api.FromQueueItem(item), nil
}

func (q *storeQueue) Cancel(ctx context.Context, id string) error {
	// No daemon means nothing is in flight; marking the row is sufficient.
	return q.store.UpdateStatus(ctx, id, queue.StatusCancelled, "Cancelled by user")
}

func (q *storeQueue) TriggerUpload(ctx context.Context, id string) error {
	return errDaemonRequired("upload")
}

func (q *storeQueue) RestartEncoding(ctx context.Context, id string) error {
	return errDaemonRequired("restart-encoding")
}

func (q *storeQueue) Clear(ctx context.Context, statuses ...string) (int64, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, errors.New("at least one status filter is required")
	}
	return q.store.ClearByStatus(ctx, filters...)
}

func (q *storeQueue) GetSettings(ctx context.Context) (api.Settings, error) {
	settings, err := q.store.GetSettings(ctx)
	if err != nil {
		return api.Settings{}, err
	}
	return api.FromSettings(settings), nil
}

func (q *storeQueue) SaveSettings(ctx context.Context, settings api.Settings) (api.Settings, error) {
	if err := q.store.SaveSettings(ctx, api.ToSettings(settings)); err != nil {
		return api.Settings{}, err
	}
	saved, err := q.store.GetSettings(ctx)
	if err != nil {
		return api.Settings{}, err
	}
	return api.FromSettings(saved), nil
}

func parseStatuses(raw []string) ([]queue.Status, error) {
	filters := make([]queue.Status, 0, len(raw))
	for _, value := range raw {
		status, err := queue.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, status)
	}
	return filters, nil
}
