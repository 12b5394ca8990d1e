package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, url, status, message, title, thumbnail_url, local_path, provider, provider_ref, encoding_progress, added_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id          string
		url         string
		statusStr   string
		message     sql.NullString
		title       sql.NullString
		thumbnail   sql.NullString
		localPath   sql.NullString
		provider    sql.NullString
		providerRef sql.NullString
		progress    sql.NullInt64
		addedRaw    sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&statusStr,
		&message,
		&title,
		&thumbnail,
		&localPath,
		&provider,
		&providerRef,
		&progress,
		&addedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		URL:          url,
		Status:       Status(statusStr),
		Message:      message.String,
		Title:        title.String,
		ThumbnailURL: thumbnail.String,
		LocalPath:    localPath.String,
		Provider:     provider.String,
		ProviderRef:  providerRef.String,
	}
	if progress.Valid {
		item.EncodingProgress = int(progress.Int64)
	}

	if added, err := parseTimeString(addedRaw.String); err == nil {
		item.AddedAt = added
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
