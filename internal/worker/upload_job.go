package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
)

// handleUploadImage moves a staged temp file into the object store and
// records its metadata. Re-running the same job overwrites the same object
// and upserts the same row, so redeliveries are harmless.
func (w *Worker) handleUploadImage(ctx context.Context, p *jobqueue.UploadImagePayload) (map[string]any, error) {
	file, err := os.Open(p.TempPath)
	if err != nil {
		// The staged file is gone for good; retrying cannot bring it back
		return nil, domain.NewPermanent(domain.ErrKindStorage,
			fmt.Errorf("failed to open staged file: %w", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to stat staged file: %w", err))
	}

	now := time.Now().UTC()
	imageName := timestampImageName(now, p.OriginalFilename)
	objectKey := imageName
	if p.FolderPath != "" {
		objectKey = path.Join(p.FolderPath, imageName)
	}

	url, err := w.objects.Put(ctx, objectKey, file, contentTypeForFilename(p.OriginalFilename))
	if err != nil {
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to store object %s: %w", objectKey, err))
	}

	sizeMB := math.Round(float64(info.Size())/(1024*1024)*100) / 100

	record := &domain.ImageRecord{
		ImageName:  imageName,
		Status:     p.Status,
		ImagePath:  url,
		CreatedAt:  now.Format("20060102_150405"),
		FolderPath: p.FolderPath,
		SizeMB:     sizeMB,
	}

	if err := w.records.UpsertImage(ctx, record); err != nil {
		return nil, domain.NewTransient(domain.ErrKindStorage,
			fmt.Errorf("failed to record image metadata: %w", err))
	}

	if err := os.Remove(p.TempPath); err != nil {
		// The upload already succeeded; leaking a temp file is not a failure
		w.logger.Warn("Failed to remove staged file",
			slog.String("temp_path", p.TempPath),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Image uploaded",
		slog.String("image_name", imageName),
		slog.String("folder_path", p.FolderPath),
		slog.Float64("size_mb", sizeMB),
	)

	return map[string]any{
		"image_name": imageName,
		"url":        url,
		"status":     p.Status,
	}, nil
}

// timestampImageName derives a unique object name from the upload instant,
// keeping the original extension. Millisecond suffix disambiguates bursts.
func timestampImageName(now time.Time, originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return fmt.Sprintf("%s_%03d%s", now.Format("20060102_150405"), now.Nanosecond()/1e6, ext)
}

// contentTypeForFilename maps the upload extension to a MIME type
func contentTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
