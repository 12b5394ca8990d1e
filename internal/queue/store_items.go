package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Add inserts a new queued item for a URL. URLs are checked against existing
// rows first: a match still moving through the pipeline or already archived
// yields a DuplicateError, while failed or cancelled history does not block
// a fresh attempt.
func (s *Store) Add(ctx context.Context, url string) (*Item, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is empty")
	}

	existing, err := s.statusesForURL(ctx, url)
	if err != nil {
		return nil, err
	}
	archived := false
	for _, status := range existing {
		if !status.IsTerminal() {
			return nil, &DuplicateError{URL: url, Status: status}
		}
		if status == StatusEncoded {
			archived = true
		}
	}
	if archived {
		return nil, &DuplicateError{URL: url, Status: StatusEncoded}
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            id, url, status, message, encoding_progress, added_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		url,
		StatusQueued,
		"Added to queue",
		0,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *Store) statusesForURL(ctx context.Context, url string) ([]Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status FROM queue_items WHERE url = ?`, url)
	if err != nil {
		return nil, fmt.Errorf("check existing url: %w", err)
	}
	defer rows.Close()

	var statuses []Status
	for rows.Next() {
		var status Status
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// Get fetches a queue item by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// NextQueued returns the oldest queued item, or nil when the queue is drained.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY added_at ASC LIMIT 1`,
		StatusQueued,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued: %w", err)
	}
	return item, nil
}

// IsAnyInStatus reports whether at least one item sits in any of the given statuses.
func (s *Store) IsAnyInStatus(ctx context.Context, statuses ...Status) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := statusArgs(statuses)

	var one int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT 1 FROM queue_items WHERE status IN (`+placeholders+`) LIMIT 1`,
		args...,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check status occupancy: %w", err)
	}
	return true, nil
}

// List returns queue items filtered by status set (or all items when no status
// is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY added_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// Gallery returns archived and downloaded items, newest first.
func (s *Store) Gallery(ctx context.Context) ([]*Item, error) {
	statuses := GalleryStatuses()
	placeholders := makePlaceholders(len(statuses))
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status IN (`+placeholders+`) ORDER BY added_at DESC`,
		statusArgs(statuses)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// Update persists every mutable column of an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET url = ?, status = ?, message = ?, title = ?, thumbnail_url = ?,
             local_path = ?, provider = ?, provider_ref = ?, encoding_progress = ?,
             updated_at = ?
         WHERE id = ?`,
		item.URL,
		item.Status,
		nullableString(item.Message),
		nullableString(item.Title),
		nullableString(item.ThumbnailURL),
		nullableString(item.LocalPath),
		nullableString(item.Provider),
		nullableString(item.ProviderRef),
		item.EncodingProgress,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the status and message of one item.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed sets an item failed unless a cancellation already won the race.
// It reports whether the row changed.
func (s *Store) MarkFailed(ctx context.Context, id string, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, message = ?, updated_at = ?
         WHERE id = ? AND status != ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateMessage sets the progress message of one item without touching its
// status. Rows that have left processing are skipped so a late progress write
// cannot resurrect a cancelled or failed item. It reports whether the row
// changed.
func (s *Store) UpdateMessage(ctx context.Context, id string, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusDownloading,
		StatusUploading,
	)
	if err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateAfterDownload persists the metadata resolved by a finished download
// unless a cancellation won the race while it ran. It reports whether the row
// changed.
func (s *Store) UpdateAfterDownload(ctx context.Context, id string, status Status, title, localPath, thumbnailURL, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, title = ?, local_path = ?, thumbnail_url = ?, message = ?, updated_at = ?
         WHERE id = ? AND status != ?`,
		status,
		nullableString(title),
		nullableString(localPath),
		nullableString(thumbnailURL),
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("update after download: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateAfterUpload persists a provider-accepted upload outcome unless a
// cancellation won the race while the transfer ran. It reports whether the
// row changed.
func (s *Store) UpdateAfterUpload(ctx context.Context, id string, status Status, provider, providerRef string, progress int, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, provider = ?, provider_ref = ?, encoding_progress = ?, message = ?, updated_at = ?
         WHERE id = ? AND status != ?`,
		status,
		nullableString(provider),
		nullableString(providerRef),
		progress,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("update after upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateEncoding persists a readiness-poll outcome unless a cancellation won
// the race while the poll ran. It reports whether the row changed.
func (s *Store) UpdateEncoding(ctx context.Context, id string, status Status, progress int, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, encoding_progress = ?, message = ?, updated_at = ?
         WHERE id = ? AND status != ?`,
		status,
		progress,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("update encoding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearByStatus removes every item in the given statuses and reports how many
// rows were deleted.
func (s *Store) ClearByStatus(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(statuses))
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE status IN (`+placeholders+`)`,
		statusArgs(statuses)...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear by status: %w", err)
	}
	return res.RowsAffected()
}
