package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Publisher is the broker surface the submitter needs
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// ImageChecker verifies that an image metadata record exists.
// Used to fail extract_form submissions fast instead of at execution time.
type ImageChecker interface {
	ImageExists(ctx context.Context, imageName string) (bool, error)
}

// Submitter validates payloads, mints job ids and enqueues descriptors.
// It returns as soon as the descriptor is durably queued; it never waits
// for execution.
type Submitter struct {
	publisher Publisher
	images    ImageChecker
	logger    *slog.Logger
}

// NewSubmitter creates a Submitter
func NewSubmitter(publisher Publisher, images ImageChecker, logger *slog.Logger) *Submitter {
	return &Submitter{
		publisher: publisher,
		images:    images,
		logger:    logger,
	}
}

// Submit validates payload for jobType, enqueues a descriptor and returns
// the generated job id. Errors are ErrInvalidPayload, ErrQueueUnavailable
// or ErrUnknownJobType.
func (s *Submitter) Submit(ctx context.Context, jobType string, payload any) (string, error) {
	if err := s.validatePayload(ctx, jobType, payload); err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	descriptor := &Descriptor{
		JobID:       uuid.New().String(),
		JobType:     jobType,
		Payload:     raw,
		SubmittedAt: time.Now().UTC(),
		RetryCount:  0,
	}

	body, err := descriptor.Encode()
	if err != nil {
		return "", err
	}

	if err := s.publisher.PublishWithRetry(ctx, jobType, body, "application/json"); err != nil {
		s.logger.Error("Failed to enqueue job",
			slog.String("job_id", descriptor.JobID),
			slog.String("job_type", jobType),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	s.logger.Info("Job enqueued",
		slog.String("job_id", descriptor.JobID),
		slog.String("job_type", jobType),
	)

	return descriptor.JobID, nil
}

// validatePayload checks the payload shape required by each job type
func (s *Submitter) validatePayload(ctx context.Context, jobType string, payload any) error {
	switch jobType {
	case JobTypeUploadImage:
		p, ok := payload.(*UploadImagePayload)
		if !ok {
			return fmt.Errorf("%w: upload_image expects UploadImagePayload", ErrInvalidPayload)
		}
		if p.TempPath == "" {
			return fmt.Errorf("%w: temp_path is required", ErrInvalidPayload)
		}
		if _, err := os.Stat(p.TempPath); err != nil {
			return fmt.Errorf("%w: temp file not readable: %v", ErrInvalidPayload, err)
		}
		if p.Status == "" {
			return fmt.Errorf("%w: status is required", ErrInvalidPayload)
		}
		return nil

	case JobTypeExtractForm:
		p, ok := payload.(*ExtractFormPayload)
		if !ok {
			return fmt.Errorf("%w: extract_form expects ExtractFormPayload", ErrInvalidPayload)
		}
		if p.ImageName == "" {
			return fmt.Errorf("%w: image_name is required", ErrInvalidPayload)
		}
		exists, err := s.images.ImageExists(ctx, p.ImageName)
		if err != nil {
			return fmt.Errorf("failed to check image record: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: image %s not found, upload first", ErrInvalidPayload, p.ImageName)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
}
