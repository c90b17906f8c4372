package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published [][]byte
	keys      []string
	err       error
}

func (f *fakePublisher) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, routingKey)
	f.published = append(f.published, body)
	return nil
}

type fakeImageChecker struct {
	exists bool
	err    error
}

func (f *fakeImageChecker) ImageExists(ctx context.Context, imageName string) (bool, error) {
	return f.exists, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func stageTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.png")
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o644))
	return path
}

func TestSubmitUploadImage(t *testing.T) {
	publisher := &fakePublisher{}
	s := NewSubmitter(publisher, &fakeImageChecker{}, testLogger())

	jobID, err := s.Submit(context.Background(), JobTypeUploadImage, &UploadImagePayload{
		TempPath:         stageTempFile(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(jobID)
	assert.NoError(t, parseErr, "job id should be a UUID")

	require.Len(t, publisher.published, 1)
	assert.Equal(t, JobTypeUploadImage, publisher.keys[0])

	d, err := DecodeDescriptor(publisher.published[0])
	require.NoError(t, err)
	assert.Equal(t, jobID, d.JobID)
	assert.Equal(t, 0, d.RetryCount)
	assert.False(t, d.SubmittedAt.IsZero())
}

func TestSubmitUploadImageValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload *UploadImagePayload
	}{
		{
			name:    "missing temp path",
			payload: &UploadImagePayload{OriginalFilename: "scan.png", Status: "Uploaded"},
		},
		{
			name: "temp file does not exist",
			payload: &UploadImagePayload{
				TempPath:         "/nonexistent/upload.png",
				OriginalFilename: "scan.png",
				Status:           "Uploaded",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &fakePublisher{}
			s := NewSubmitter(publisher, &fakeImageChecker{}, testLogger())

			_, err := s.Submit(context.Background(), JobTypeUploadImage, tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Empty(t, publisher.published, "invalid payloads must not be enqueued")
		})
	}

	t.Run("missing status", func(t *testing.T) {
		publisher := &fakePublisher{}
		s := NewSubmitter(publisher, &fakeImageChecker{}, testLogger())

		_, err := s.Submit(context.Background(), JobTypeUploadImage, &UploadImagePayload{
			TempPath:         stageTempFile(t),
			OriginalFilename: "scan.png",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestSubmitExtractForm(t *testing.T) {
	t.Run("image exists", func(t *testing.T) {
		publisher := &fakePublisher{}
		s := NewSubmitter(publisher, &fakeImageChecker{exists: true}, testLogger())

		jobID, err := s.Submit(context.Background(), JobTypeExtractForm, &ExtractFormPayload{
			ImageName: "20260820_103000_000.png",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, jobID)
		assert.Equal(t, []string{JobTypeExtractForm}, publisher.keys)
	})

	t.Run("image does not exist", func(t *testing.T) {
		publisher := &fakePublisher{}
		s := NewSubmitter(publisher, &fakeImageChecker{exists: false}, testLogger())

		_, err := s.Submit(context.Background(), JobTypeExtractForm, &ExtractFormPayload{
			ImageName: "20260820_103000_000.png",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPayload)
		assert.Empty(t, publisher.published)
	})

	t.Run("missing image name", func(t *testing.T) {
		publisher := &fakePublisher{}
		s := NewSubmitter(publisher, &fakeImageChecker{exists: true}, testLogger())

		_, err := s.Submit(context.Background(), JobTypeExtractForm, &ExtractFormPayload{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestSubmitQueueUnavailable(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker connection refused")}
	s := NewSubmitter(publisher, &fakeImageChecker{exists: true}, testLogger())

	_, err := s.Submit(context.Background(), JobTypeExtractForm, &ExtractFormPayload{
		ImageName: "20260820_103000_000.png",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidPayload)
}

func TestSubmitUnknownJobType(t *testing.T) {
	publisher := &fakePublisher{}
	s := NewSubmitter(publisher, &fakeImageChecker{}, testLogger())

	_, err := s.Submit(context.Background(), "resize_image", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownJobType)
}
