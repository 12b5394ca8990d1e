package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSettings loads the persisted application settings. A database with no
// settings row yields the zero value; callers interpret empty fields as their
// built-in defaults.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT filemoon_api_key, files_vc_api_key, download_directory,
                delete_after_upload, auto_upload, upload_target
         FROM app_settings WHERE id = 1`)

	var (
		settings    Settings
		deleteAfter int
		autoUpload  int
	)
	err := row.Scan(
		&settings.FilemoonAPIKey,
		&settings.FilesVCAPIKey,
		&settings.DownloadDirectory,
		&deleteAfter,
		&autoUpload,
		&settings.UploadTarget,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings.DeleteAfterUpload = deleteAfter != 0
	settings.AutoUpload = autoUpload != 0
	return settings, nil
}

// SaveSettings replaces the stored settings as a whole.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO app_settings (
            id, filemoon_api_key, files_vc_api_key, download_directory,
            delete_after_upload, auto_upload, upload_target
        ) VALUES (1, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            filemoon_api_key = excluded.filemoon_api_key,
            files_vc_api_key = excluded.files_vc_api_key,
            download_directory = excluded.download_directory,
            delete_after_upload = excluded.delete_after_upload,
            auto_upload = excluded.auto_upload,
            upload_target = excluded.upload_target`,
		settings.FilemoonAPIKey,
		settings.FilesVCAPIKey,
		settings.DownloadDirectory,
		boolToInt(settings.DeleteAfterUpload),
		boolToInt(settings.AutoUpload),
		settings.UploadTarget,
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
