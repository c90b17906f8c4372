package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/tqminh/formextract-be/internal/inference"
	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
	"github.com/tqminh/formextract-be/shared/objectstore"
)

// handleExtractForm downloads a stored image, runs document extraction and
// persists the normalized fields. The extraction row and the Completed
// status are upserts keyed by image name, so re-running is safe.
func (w *Worker) handleExtractForm(ctx context.Context, p *jobqueue.ExtractFormPayload) (map[string]any, error) {
	record, err := w.records.GetImage(ctx, p.ImageName)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NewPermanent(domain.ErrKindInvalidPayload,
				fmt.Errorf("image %s has no metadata record", p.ImageName))
		}
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to load image record: %w", err))
	}

	// Visible to pollers while extraction runs. Best effort: a failure
	// here must not abort the job.
	processing := *record
	processing.Status = domain.ImageStatusProcessing
	if err := w.records.UpsertImage(ctx, &processing); err != nil {
		w.logger.Warn("Failed to mark image as processing",
			slog.String("image_name", p.ImageName),
			slog.String("error", err.Error()),
		)
	}

	objectKey := p.ImageName
	if record.FolderPath != "" {
		objectKey = path.Join(record.FolderPath, p.ImageName)
	}

	image, err := w.objects.Get(ctx, objectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			return nil, domain.NewPermanent(domain.ErrKindStorage,
				fmt.Errorf("stored object %s is missing: %w", objectKey, err))
		}
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to download object %s: %w", objectKey, err))
	}

	fields, err := w.inference.Extract(ctx, image, http.DetectContentType(image))
	if err != nil {
		if errors.Is(err, inference.ErrInvalidDocument) {
			return nil, domain.NewPermanent(domain.ErrKindInvalidDocument, err)
		}
		return nil, domain.NewTransient(domain.ErrKindInference, err)
	}

	normalized, err := w.normalizer.Normalize(ctx, fields)
	if err != nil {
		// Model output varies between calls, so even schema misses are
		// worth another attempt
		return nil, domain.NewTransient(domain.ErrKindPostProcess, err)
	}

	extraction := &domain.FormExtraction{
		ImageName:  p.ImageName,
		Status:     domain.ImageStatusCompleted,
		ImagePath:  record.ImagePath,
		CreatedAt:  firstNonEmpty(p.CreatedAt, record.CreatedAt, time.Now().UTC().Format("20060102_150405")),
		FolderPath: record.FolderPath,
		SizeMB:     record.SizeMB,
		Analysis:   normalized,
	}

	if err := w.records.UpsertFormExtraction(ctx, extraction); err != nil {
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to record extraction: %w", err))
	}

	completed := *record
	completed.Status = domain.ImageStatusCompleted
	if err := w.records.UpsertImage(ctx, &completed); err != nil {
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to mark image completed: %w", err))
	}

	w.logger.Info("Form extracted",
		slog.String("image_name", p.ImageName),
		slog.Int("field_count", len(normalized)),
	)

	return map[string]any{
		"image_name":      p.ImageName,
		"analysis_result": normalized,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
