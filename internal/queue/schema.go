package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	versioned, err := s.tableExists(ctx, "schema_version")
	if err != nil {
		return err
	}

	if !versioned {
		legacy, err := s.tableExists(ctx, "queue")
		if err != nil {
			return err
		}
		legacySettings, err := s.tableExists(ctx, "settings")
		if err != nil {
			return err
		}
		if legacy || legacySettings {
			return s.migrateLegacy(ctx, legacy, legacySettings)
		}
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'permavid queue clear --all' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// migrateLegacy converts a database written by the pre-versioned layout in a
// single transaction: the old queue table carried one URL column per provider
// and millisecond timestamps, and settings lived in a key-value table (with a
// later revision folding them into one JSON blob).
func (s *Store) migrateLegacy(ctx context.Context, hasQueue, hasSettings bool) error {
	var legacyItems []*Item
	if hasQueue {
		items, err := s.readLegacyItems(ctx)
		if err != nil {
			return err
		}
		legacyItems = items
	}

	settings := Settings{}
	if hasSettings {
		loaded, err := s.readLegacySettings(ctx)
		if err != nil {
			return err
		}
		settings = loaded
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if hasQueue {
		if _, err := tx.ExecContext(ctx, "DROP TABLE queue"); err != nil {
			return fmt.Errorf("drop legacy queue table: %w", err)
		}
	}
	if hasSettings {
		if _, err := tx.ExecContext(ctx, "DROP TABLE settings"); err != nil {
			return fmt.Errorf("drop legacy settings table: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	for _, item := range legacyItems {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_items (
                id, url, status, message, title, thumbnail_url, local_path,
                provider, provider_ref, encoding_progress, added_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.URL,
			item.Status,
			nullableString(item.Message),
			nullableString(item.Title),
			nullableString(item.ThumbnailURL),
			nullableString(item.LocalPath),
			nullableString(item.Provider),
			nullableString(item.ProviderRef),
			item.EncodingProgress,
			item.AddedAt.Format(time.RFC3339Nano),
			item.UpdatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("migrate item %s: %w", item.ID, err)
		}
	}

	if settings != (Settings{}) {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO app_settings (
                id, filemoon_api_key, files_vc_api_key, download_directory,
                delete_after_upload, auto_upload, upload_target
            ) VALUES (1, ?, ?, ?, ?, ?, ?)`,
			settings.FilemoonAPIKey,
			settings.FilesVCAPIKey,
			settings.DownloadDirectory,
			boolToInt(settings.DeleteAfterUpload),
			boolToInt(settings.AutoUpload),
			settings.UploadTarget,
		); err != nil {
			return fmt.Errorf("migrate settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func (s *Store) readLegacyItems(ctx context.Context) ([]*Item, error) {
	// Not every legacy revision carried the second provider column.
	filesVCExpr := "NULL"
	hasFilesVC, err := s.legacyColumnExists(ctx, "queue", "files_vc_url")
	if err != nil {
		return nil, err
	}
	if hasFilesVC {
		filesVCExpr = "files_vc_url"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, status, message, title, thumbnail_url, local_path,
                filemoon_url, `+filesVCExpr+`, encoding_progress, added_at, updated_at
         FROM queue`)
	if err != nil {
		return nil, fmt.Errorf("read legacy queue: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var (
			id          string
			url         string
			status      string
			message     sql.NullString
			title       sql.NullString
			thumbnail   sql.NullString
			localPath   sql.NullString
			filemoonURL sql.NullString
			filesVCURL  sql.NullString
			progress    sql.NullInt64
			addedRaw    any
			updatedRaw  any
		)
		if err := rows.Scan(&id, &url, &status, &message, &title, &thumbnail,
			&localPath, &filemoonURL, &filesVCURL, &progress, &addedRaw, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan legacy item: %w", err)
		}

		item := &Item{
			ID:           id,
			URL:          url,
			Status:       migrateLegacyStatus(status),
			Message:      message.String,
			Title:        title.String,
			ThumbnailURL: thumbnail.String,
			LocalPath:    localPath.String,
			AddedAt:      legacyTime(addedRaw),
			UpdatedAt:    legacyTime(updatedRaw),
		}
		if progress.Valid {
			item.EncodingProgress = int(progress.Int64)
		}
		switch {
		case strings.TrimSpace(filemoonURL.String) != "":
			item.Provider = ProviderFilemoon
			item.ProviderRef = filemoonURL.String
		case strings.TrimSpace(filesVCURL.String) != "":
			item.Provider = ProviderFilesVC
			item.ProviderRef = filesVCURL.String
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) legacyColumnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, fmt.Errorf("inspect legacy table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan legacy table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) readLegacySettings(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("read legacy settings: %w", err)
	}
	defer rows.Close()

	settings := Settings{}
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan legacy setting: %w", err)
		}
		if !value.Valid {
			continue
		}
		switch key {
		case "filemoon_api_key":
			settings.FilemoonAPIKey = value.String
		case "files_vc_api_key":
			settings.FilesVCAPIKey = value.String
		case "download_directory":
			settings.DownloadDirectory = value.String
		case "delete_after_upload":
			settings.DeleteAfterUpload = legacyBool(value.String)
		case "auto_upload":
			settings.AutoUpload = legacyBool(value.String)
		case "upload_target":
			settings.UploadTarget = value.String
		case "user_settings":
			// One revision stored everything as a single JSON blob.
			var blob struct {
				FilemoonAPIKey    string `json:"filemoon_api_key"`
				FilesVCAPIKey     string `json:"files_vc_api_key"`
				DownloadDirectory string `json:"download_directory"`
				DeleteAfterUpload string `json:"delete_after_upload"`
				AutoUpload        string `json:"auto_upload"`
				UploadTarget      string `json:"upload_target"`
			}
			if err := json.Unmarshal([]byte(value.String), &blob); err != nil {
				continue
			}
			if blob.FilemoonAPIKey != "" {
				settings.FilemoonAPIKey = blob.FilemoonAPIKey
			}
			if blob.FilesVCAPIKey != "" {
				settings.FilesVCAPIKey = blob.FilesVCAPIKey
			}
			if blob.DownloadDirectory != "" {
				settings.DownloadDirectory = blob.DownloadDirectory
			}
			if blob.DeleteAfterUpload != "" {
				settings.DeleteAfterUpload = legacyBool(blob.DeleteAfterUpload)
			}
			if blob.AutoUpload != "" {
				settings.AutoUpload = legacyBool(blob.AutoUpload)
			}
			if blob.UploadTarget != "" {
				settings.UploadTarget = blob.UploadTarget
			}
		}
	}
	return settings, rows.Err()
}

// migrateLegacyStatus maps the retired terminal status onto the canonical one.
func migrateLegacyStatus(raw string) Status {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if status == "uploaded" {
		return StatusEncoded
	}
	return status
}

func legacyBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// legacyTime converts a legacy timestamp column, which held either millisecond
// epochs or datetime text depending on revision.
func legacyTime(raw any) time.Time {
	switch v := raw.(type) {
	case int64:
		return time.UnixMilli(v).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	case string:
		return parseLegacyTimeText(v)
	case []byte:
		return parseLegacyTimeText(string(v))
	}
	return time.Now().UTC()
}

func parseLegacyTimeText(value string) time.Time {
	value = strings.TrimSpace(value)
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	if t, err := parseTimeString(value); err == nil {
		return t
	}
	return time.Now().UTC()
}
