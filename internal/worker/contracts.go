package worker

import (
	"context"
	"io"

	"github.com/tqminh/formextract-be/internal/worker/domain"
)

// ObjectStore is the object storage surface the handlers need
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// ResultStore persists job lifecycle state for pollers. Every write is an
// upsert guarded against downgrading a terminal state.
type ResultStore interface {
	MarkStarted(ctx context.Context, jobID string, retryCount int) error
	MarkRetry(ctx context.Context, jobID string, retryCount int, cause string) error
	MarkSuccess(ctx context.Context, jobID string, result map[string]any) error
	MarkFailure(ctx context.Context, jobID string, kind, message string) error
	Heartbeat(ctx context.Context, jobID string) error
}

// RecordStore persists image metadata and extraction results
type RecordStore interface {
	UpsertImage(ctx context.Context, rec *domain.ImageRecord) error
	GetImage(ctx context.Context, imageName string) (*domain.ImageRecord, error)
	UpsertFormExtraction(ctx context.Context, rec *domain.FormExtraction) error
}

// Inference submits an image and returns structured fields
type Inference interface {
	Extract(ctx context.Context, image []byte, mimeType string) (map[string]any, error)
}

// Normalizer cleans up raw extraction fields
type Normalizer interface {
	Normalize(ctx context.Context, fields map[string]any) (map[string]any, error)
}

// Requeuer re-publishes a descriptor for another attempt
type Requeuer interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}
