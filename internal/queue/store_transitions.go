package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Retry moves a failed item back to queued. Items that already hold a remote
// copy are refused; re-running the pipeline would duplicate the upload.
func (s *Store) Retry(ctx context.Context, id string) (*Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if !item.Retryable() {
		return nil, fmt.Errorf("%w: status %s, remote copy %t", ErrNotRetryable, item.Status, item.HasRemoteCopy())
	}
	if err := s.UpdateStatus(ctx, id, StatusQueued, "Retrying..."); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ResetStuckProcessing recovers items left mid-transfer by a crashed or killed
// daemon. Items with no provider ref simply re-enter the queue; items that
// already handed a file to a provider are failed because the remote outcome
// cannot be known.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = CASE WHEN COALESCE(provider_ref, '') = '' THEN ? ELSE ? END,
             message = CASE WHEN COALESCE(provider_ref, '') = '' THEN ? ELSE ? END,
             updated_at = ?
         WHERE status IN (?, ?)`,
		StatusQueued, StatusFailed,
		"Reset after interrupted processing", "Interrupted during upload; remote state unknown",
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusDownloading,
		StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// ItemsForStatusCheck returns the readiness-poll work list: every item waiting
// on remote encoding that has a provider ref, paired with the configured API
// key. An unconfigured key yields an empty list; polling would be pointless.
func (s *Store) ItemsForStatusCheck(ctx context.Context) ([]StatusCheck, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings for status check: %w", err)
	}
	apiKey := strings.TrimSpace(settings.FilemoonAPIKey)
	if apiKey == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, provider_ref FROM queue_items
         WHERE status IN (?, ?) AND COALESCE(provider_ref, '') != ''
         ORDER BY added_at`,
		StatusTransferring,
		StatusEncoding,
	)
	if err != nil {
		return nil, fmt.Errorf("query items for status check: %w", err)
	}
	defer rows.Close()

	var checks []StatusCheck
	for rows.Next() {
		var check StatusCheck
		if err := rows.Scan(&check.ItemID, &check.ProviderRef); err != nil {
			return nil, err
		}
		check.APIKey = apiKey
		checks = append(checks, check)
	}
	return checks, rows.Err()
}
