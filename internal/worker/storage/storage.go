package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// upsertJobState writes one lifecycle transition. The WHERE clause on the
// conflict branch keeps SUCCESS and FAILURE immutable: a late or redelivered
// write against a terminal record is silently a no-op.
const upsertJobStateQuery = `
	INSERT INTO job_records (job_id, state, result, error_kind, error_message, retry_count, last_heartbeat_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	ON CONFLICT (job_id) DO UPDATE
	SET state = EXCLUDED.state,
	    result = EXCLUDED.result,
	    error_kind = EXCLUDED.error_kind,
	    error_message = EXCLUDED.error_message,
	    retry_count = EXCLUDED.retry_count,
	    last_heartbeat_at = NOW(),
	    updated_at = NOW()
	WHERE job_records.state NOT IN ($7, $8)
`

func (s *Storage) upsertJobState(ctx context.Context, jobID, state string, result []byte, errorKind, errorMessage string, retryCount int) error {
	var resultArg any
	if result != nil {
		resultArg = result
	}

	_, err := s.db.ExecContext(ctx, upsertJobStateQuery,
		jobID, state, resultArg, nullIfEmpty(errorKind), nullIfEmpty(errorMessage), retryCount,
		jobqueue.StateSuccess, jobqueue.StateFailure,
	)
	if err != nil {
		return fmt.Errorf("failed to record job state %s: %w", state, err)
	}

	s.logger.Debug("Job state recorded",
		slog.String("job_id", jobID),
		slog.String("state", state),
		slog.Int("retry_count", retryCount),
	)

	return nil
}

// MarkStarted records that a worker picked the job up
func (s *Storage) MarkStarted(ctx context.Context, jobID string, retryCount int) error {
	return s.upsertJobState(ctx, jobID, jobqueue.StateStarted, nil, "", "", retryCount)
}

// MarkRetry records a transient failure and the retry count of the
// attempt about to be queued
func (s *Storage) MarkRetry(ctx context.Context, jobID string, retryCount int, cause string) error {
	return s.upsertJobState(ctx, jobID, jobqueue.StateRetry, nil, "", cause, retryCount)
}

// MarkSuccess records the terminal SUCCESS state with the result payload
func (s *Storage) MarkSuccess(ctx context.Context, jobID string, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	var current struct {
		RetryCount int `db:"retry_count"`
	}
	retryCount := 0
	if err := s.db.GetContext(ctx, &current, `SELECT retry_count FROM job_records WHERE job_id = $1`, jobID); err == nil {
		retryCount = current.RetryCount
	}

	return s.upsertJobState(ctx, jobID, jobqueue.StateSuccess, resultJSON, "", "", retryCount)
}

// MarkFailure records the terminal FAILURE state with the classified error
func (s *Storage) MarkFailure(ctx context.Context, jobID string, kind, message string) error {
	var current struct {
		RetryCount int `db:"retry_count"`
	}
	retryCount := 0
	if err := s.db.GetContext(ctx, &current, `SELECT retry_count FROM job_records WHERE job_id = $1`, jobID); err == nil {
		retryCount = current.RetryCount
	}

	return s.upsertJobState(ctx, jobID, jobqueue.StateFailure, nil, kind, message, retryCount)
}

// Heartbeat refreshes liveness on a running job record
func (s *Storage) Heartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE job_records
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND state = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, jobqueue.StateStarted)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// UpsertImage writes image metadata keyed by image name
func (s *Storage) UpsertImage(ctx context.Context, rec *domain.ImageRecord) error {
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
		rec.ImageName, rec.Status, rec.ImagePath, rec.CreatedAt, rec.FolderPath, rec.SizeMB,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert image record: %w", err)
	}

	return nil
}

// GetImage loads the image metadata row for imageName
func (s *Storage) GetImage(ctx context.Context, imageName string) (*domain.ImageRecord, error) {
	query := `
		SELECT image_name, status, image_path, created_at, folder_path, size_mb
		FROM image_details
		WHERE image_name = $1
	`

	var rec domain.ImageRecord
	if err := s.db.GetContext(ctx, &rec, query, imageName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get image record: %w", err)
	}

	return &rec, nil
}

// UpsertFormExtraction writes the extraction output keyed by image name
func (s *Storage) UpsertFormExtraction(ctx context.Context, rec *domain.FormExtraction) error {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	query := `
		INSERT INTO form_extractions (image_name, status, image_path, created_at, folder_path, size_mb, analysis, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (image_name) DO UPDATE
		SET status = EXCLUDED.status,
		    image_path = EXCLUDED.image_path,
		    folder_path = EXCLUDED.folder_path,
		    size_mb = EXCLUDED.size_mb,
		    analysis = EXCLUDED.analysis,
		    updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ImageName, rec.Status, rec.ImagePath, rec.CreatedAt, rec.FolderPath, rec.SizeMB, analysisJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert form extraction: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
