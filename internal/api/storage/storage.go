package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tqminh/formextract-be/internal/api/domain"
	"github.com/tqminh/formextract-be/internal/api/model"
	"github.com/tqminh/formextract-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetJobRecord loads the lifecycle row for a job id
func (s *Storage) GetJobRecord(ctx context.Context, jobID string) (*model.JobRecord, error) {
	var record model.JobRecord
	query := `
		SELECT job_id, state, result, error_kind, error_message, retry_count, last_heartbeat_at, updated_at
		FROM job_records
		WHERE job_id = $1
	`

	if err := s.db.GetContext(ctx, &record, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobRecordNotFound
		}
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	return &record, nil
}

// ImageExists reports whether an image metadata row exists
func (s *Storage) ImageExists(ctx context.Context, imageName string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM image_details WHERE image_name = $1)`

	if err := s.db.GetContext(ctx, &exists, query, imageName); err != nil {
		return false, fmt.Errorf("failed to check image record: %w", err)
	}

	return exists, nil
}

// GetImage loads one image record by name
func (s *Storage) GetImage(ctx context.Context, imageName string) (*model.ImageDetail, error) {
	var image model.ImageDetail
	query := `
		SELECT image_name, status, image_path, created_at, folder_path, size_mb
		FROM image_details
		WHERE image_name = $1
	`

	if err := s.db.GetContext(ctx, &image, query, imageName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return &image, nil
}

// UpsertImage writes image metadata keyed by name
func (s *Storage) UpsertImage(ctx context.Context, image *model.ImageDetail) error {
	query := `
		INSERT INTO image_details (image_name, status, image_path, created_at, folder_path, size_mb, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (image_name) DO UPDATE
		SET status = EXCLUDED.status,
		    image_path = EXCLUDED.image_path,
		    folder_path = EXCLUDED.folder_path,
		    size_mb = EXCLUDED.size_mb,
		    updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		image.ImageName, image.Status, image.ImagePath, image.CreatedAt, image.FolderPath, image.SizeMB,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert image: %w", err)
	}

	return nil
}

// DeleteImage removes an image record and its extraction row
func (s *Storage) DeleteImage(ctx context.Context, imageName string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM image_details WHERE image_name = $1`, imageName)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrImageNotFound
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM form_extractions WHERE image_name = $1`, imageName); err != nil {
		return fmt.Errorf("failed to delete form extraction: %w", err)
	}

	return nil
}

// ImageFilter selects and paginates the image listing
type ImageFilter struct {
	FolderPath string
	Status     string
	PageSize   int
	Cursor     *ImageCursor
}

// ImageCursor is the keyset position for image pagination. CreatedAt is
// the lexically sortable timestamp token stored on the row.
type ImageCursor struct {
	CreatedAt string
	ImageName string
}

// ListImages returns up to PageSize+1 images ordered newest first. The
// extra row tells the caller whether another page exists.
func (s *Storage) ListImages(ctx context.Context, filter ImageFilter) ([]model.ImageDetail, error) {
	query := `
		SELECT image_name, status, image_path, created_at, folder_path, size_mb
		FROM image_details
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.FolderPath != "" {
		query += fmt.Sprintf(" AND folder_path = $%d", argIdx)
		args = append(args, filter.FolderPath)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, image_name) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ImageName)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, image_name DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var images []model.ImageDetail
	if err := s.db.SelectContext(ctx, &images, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	return images, nil
}

// GetFormExtraction loads the extraction row for an image
func (s *Storage) GetFormExtraction(ctx context.Context, imageName string) (*model.FormExtraction, error) {
	var form model.FormExtraction
	query := `
		SELECT image_name, status, image_path, created_at, folder_path, size_mb, analysis
		FROM form_extractions
		WHERE image_name = $1
	`

	if err := s.db.GetContext(ctx, &form, query, imageName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to get form extraction: %w", err)
	}

	return &form, nil
}

// ListFolders returns all folders, newest first
func (s *Storage) ListFolders(ctx context.Context) ([]model.ImageFolder, error) {
	var folders []model.ImageFolder
	query := `SELECT folder_path, created_at FROM image_folders ORDER BY created_at DESC`

	if err := s.db.SelectContext(ctx, &folders, query); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// CreateFolder records a logical folder
func (s *Storage) CreateFolder(ctx context.Context, folderPath string) error {
	query := `
		INSERT INTO image_folders (folder_path, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (folder_path) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, folderPath)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrFolderExists
	}

	return nil
}

// DeleteFolder removes the folder record and every image record under it
func (s *Storage) DeleteFolder(ctx context.Context, folderPath string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM image_folders WHERE folder_path = $1`, folderPath)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrFolderNotFound
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM form_extractions WHERE image_name IN (SELECT image_name FROM image_details WHERE folder_path = $1)`, folderPath); err != nil {
		return fmt.Errorf("failed to delete folder extractions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM image_details WHERE folder_path = $1`, folderPath); err != nil {
		return fmt.Errorf("failed to delete folder images: %w", err)
	}

	return nil
}

// RenameFolder moves the folder record and repoints its image records
func (s *Storage) RenameFolder(ctx context.Context, oldPath, newPath string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rename: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE image_folders SET folder_path = $1 WHERE folder_path = $2`, newPath, oldPath)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrFolderNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE image_details SET folder_path = $1, updated_at = NOW() WHERE folder_path = $2`, newPath, oldPath); err != nil {
		return fmt.Errorf("failed to repoint folder images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE form_extractions SET folder_path = $1, updated_at = NOW() WHERE folder_path = $2`, newPath, oldPath); err != nil {
		return fmt.Errorf("failed to repoint folder extractions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rename: %w", err)
	}

	return nil
}
