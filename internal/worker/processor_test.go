package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqminh/formextract-be/internal/inference"
	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
)

type fakeResults struct {
	mu          sync.Mutex
	transitions []string
	result      map[string]any
	failureKind string
	failureMsg  string
	startedErr  error
	retryErr    error
	successErr  error
	failureErr  error
}

func (f *fakeResults) MarkStarted(ctx context.Context, jobID string, retryCount int) error {
	if f.startedErr != nil {
		return f.startedErr
	}
	f.record(fmt.Sprintf("STARTED:%d", retryCount))
	return nil
}

func (f *fakeResults) MarkRetry(ctx context.Context, jobID string, retryCount int, cause string) error {
	if f.retryErr != nil {
		return f.retryErr
	}
	f.record(fmt.Sprintf("RETRY:%d", retryCount))
	return nil
}

func (f *fakeResults) MarkSuccess(ctx context.Context, jobID string, result map[string]any) error {
	if f.successErr != nil {
		return f.successErr
	}
	f.mu.Lock()
	f.result = result
	f.mu.Unlock()
	f.record("SUCCESS")
	return nil
}

func (f *fakeResults) MarkFailure(ctx context.Context, jobID string, kind, message string) error {
	if f.failureErr != nil {
		return f.failureErr
	}
	f.mu.Lock()
	f.failureKind = kind
	f.failureMsg = message
	f.mu.Unlock()
	f.record("FAILURE")
	return nil
}

func (f *fakeResults) Heartbeat(ctx context.Context, jobID string) error {
	return nil
}

func (f *fakeResults) record(transition string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, transition)
}

func (f *fakeResults) states() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transitions...)
}

type fakeRecordStore struct {
	mu          sync.Mutex
	images      map[string]*domain.ImageRecord
	extractions map[string]*domain.FormExtraction
	upsertErr   error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		images:      make(map[string]*domain.ImageRecord),
		extractions: make(map[string]*domain.FormExtraction),
	}
}

func (f *fakeRecordStore) UpsertImage(ctx context.Context, rec *domain.ImageRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.images[rec.ImageName] = &clone
	return nil
}

func (f *fakeRecordStore) GetImage(ctx context.Context, imageName string) (*domain.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.images[imageName]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRecordStore) UpsertFormExtraction(ctx context.Context, rec *domain.FormExtraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.extractions[rec.ImageName] = &clone
	return nil
}

type fakeObjectStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	putErr      error
	putFailures int
	getErr      error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.mu.Lock()
	if f.putFailures > 0 {
		f.putFailures--
		f.mu.Unlock()
		return "", errors.New("connection reset")
	}
	f.mu.Unlock()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return "https://bucket.example.com/" + key, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

type fakeInference struct {
	fields map[string]any
	err    error
}

func (f *fakeInference) Extract(ctx context.Context, image []byte, mimeType string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

type fakeNormalizer struct {
	err error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, fields map[string]any) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fields, nil
}

type fakeRequeuer struct {
	mu     sync.Mutex
	bodies [][]byte
	keys   []string
	err    error
}

func (f *fakeRequeuer) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, routingKey)
	f.bodies = append(f.bodies, body)
	return nil
}

type workerFixture struct {
	worker    *Worker
	results   *fakeResults
	records   *fakeRecordStore
	objects   *fakeObjectStore
	inference *fakeInference
	norm      *fakeNormalizer
	requeuer  *fakeRequeuer
}

func newWorkerFixture(t *testing.T, retry RetryPolicy) *workerFixture {
	t.Helper()

	f := &workerFixture{
		results:   &fakeResults{},
		records:   newFakeRecordStore(),
		objects:   newFakeObjectStore(),
		inference: &fakeInference{fields: map[string]any{"full_name": "Jane Doe"}},
		norm:      &fakeNormalizer{},
		requeuer:  &fakeRequeuer{},
	}

	f.worker = NewWorker(&Config{
		Logger:            slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Results:           f.results,
		Records:           f.records,
		Objects:           f.objects,
		Inference:         f.inference,
		Normalizer:        f.norm,
		Requeuer:          f.requeuer,
		Concurrency:       1,
		JobTimeout:        10 * time.Second,
		HeartbeatInterval: time.Hour,
		Retry:             retry,
	})

	return f
}

func quickRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      maxRetries,
		BackoffBase:     time.Millisecond,
		BackoffMax:      5 * time.Millisecond,
		BackoffStrategy: "fixed",
	}
}

func uploadDescriptor(t *testing.T, retryCount int, payload *jobqueue.UploadImagePayload) *domain.JobMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.JobMessage{
		Descriptor: &jobqueue.Descriptor{
			JobID:       "aa8e27b2-2c19-4a6f-9f26-20c5b3e0a001",
			JobType:     jobqueue.JobTypeUploadImage,
			Payload:     raw,
			SubmittedAt: time.Now().UTC(),
			RetryCount:  retryCount,
		},
		DeliveryTag: 1,
	}
}

func stageUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0o644))
	return path
}

func TestProcessJobUploadSuccess(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	tempPath := stageUpload(t)

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         tempPath,
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
		FolderPath:       "invoices",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:0", "SUCCESS"}, f.results.states())

	require.NotNil(t, f.results.result)
	imageName, ok := f.results.result["image_name"].(string)
	require.True(t, ok)
	assert.Contains(t, f.results.result["url"], "invoices/"+imageName)
	assert.Equal(t, "Uploaded", f.results.result["status"])

	// The staged file is consumed and the metadata row exists
	_, statErr := os.Stat(tempPath)
	assert.True(t, os.IsNotExist(statErr))
	_, err = f.records.GetImage(context.Background(), imageName)
	assert.NoError(t, err)
}

func TestProcessJobTransientFailureSchedulesRetry(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	f.objects.putErr = errors.New("connection reset")

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         stageUpload(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err, "a recorded retry means the delivery can be acked")

	assert.Equal(t, []string{"STARTED:0", "RETRY:1"}, f.results.states())

	require.Len(t, f.requeuer.bodies, 1)
	assert.Equal(t, jobqueue.JobTypeUploadImage, f.requeuer.keys[0])

	d, decodeErr := jobqueue.DecodeDescriptor(f.requeuer.bodies[0])
	require.NoError(t, decodeErr)
	assert.Equal(t, 1, d.RetryCount)
	assert.Equal(t, msg.Descriptor.JobID, d.JobID)
}

func TestProcessJobRetriesExhausted(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	f.objects.putErr = errors.New("connection reset")

	msg := uploadDescriptor(t, 3, &jobqueue.UploadImagePayload{
		TempPath:         stageUpload(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:3", "FAILURE"}, f.results.states())
	assert.Equal(t, domain.ErrKindStorage, f.results.failureKind)
	assert.Empty(t, f.requeuer.bodies, "exhausted jobs are not requeued")
}

func TestProcessJobPermanentFailureSkipsRetry(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))

	raw := []byte(`{"temp_path": 42}`)
	msg := &domain.JobMessage{
		Descriptor: &jobqueue.Descriptor{
			JobID:      "aa8e27b2-2c19-4a6f-9f26-20c5b3e0a002",
			JobType:    jobqueue.JobTypeUploadImage,
			Payload:    raw,
			RetryCount: 0,
		},
		DeliveryTag: 2,
	}

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:0", "FAILURE"}, f.results.states())
	assert.Equal(t, domain.ErrKindInvalidPayload, f.results.failureKind)
	assert.Empty(t, f.requeuer.bodies)
}

func TestProcessJobAlwaysFailingRetriesExactlyMax(t *testing.T) {
	const maxRetries = 3

	f := newWorkerFixture(t, quickRetry(maxRetries))
	f.objects.putErr = errors.New("connection reset")

	// The staged file must survive every attempt
	tempPath := stageUpload(t)

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         tempPath,
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	// Drive the redelivery loop the broker would provide
	for {
		require.NoError(t, f.worker.processJob(context.Background(), msg))

		f.requeuer.mu.Lock()
		pending := len(f.requeuer.bodies)
		var next []byte
		if pending > 0 {
			next = f.requeuer.bodies[pending-1]
			f.requeuer.bodies = f.requeuer.bodies[:pending-1]
		}
		f.requeuer.mu.Unlock()

		if next == nil {
			break
		}

		d, err := jobqueue.DecodeDescriptor(next)
		require.NoError(t, err)
		msg = &domain.JobMessage{Descriptor: d, DeliveryTag: msg.DeliveryTag + 1}
	}

	states := f.results.states()
	retries := 0
	failures := 0
	for _, s := range states {
		switch {
		case s == "FAILURE":
			failures++
		case len(s) > 5 && s[:5] == "RETRY":
			retries++
		}
	}

	assert.Equal(t, maxRetries, retries, "exactly max_retries RETRY transitions")
	assert.Equal(t, 1, failures, "exactly one terminal FAILURE")
	assert.Equal(t, fmt.Sprintf("STARTED:%d", maxRetries), states[len(states)-2])
}

func TestProcessJobTransientFailuresThenSuccess(t *testing.T) {
	const failures = 2

	f := newWorkerFixture(t, quickRetry(3))
	f.objects.putFailures = failures

	tempPath := stageUpload(t)

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         tempPath,
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
		FolderPath:       "invoices",
	})

	// Drive the redelivery loop the broker would provide
	for {
		require.NoError(t, f.worker.processJob(context.Background(), msg))

		f.requeuer.mu.Lock()
		pending := len(f.requeuer.bodies)
		var next []byte
		if pending > 0 {
			next = f.requeuer.bodies[pending-1]
			f.requeuer.bodies = f.requeuer.bodies[:pending-1]
		}
		f.requeuer.mu.Unlock()

		if next == nil {
			break
		}

		d, err := jobqueue.DecodeDescriptor(next)
		require.NoError(t, err)
		msg = &domain.JobMessage{Descriptor: d, DeliveryTag: msg.DeliveryTag + 1}
	}

	// One RETRY per failed attempt, then the successful one
	assert.Equal(t, []string{
		"STARTED:0", "RETRY:1",
		"STARTED:1", "RETRY:2",
		"STARTED:2", "SUCCESS",
	}, f.results.states())

	require.NotNil(t, f.results.result)
	imageName, ok := f.results.result["image_name"].(string)
	require.True(t, ok)
	assert.Contains(t, f.results.result["url"], "invoices/"+imageName)

	// Only the successful attempt consumes the staged file
	_, statErr := os.Stat(tempPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessJobStartedWriteFails(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	f.results.startedErr = errors.New("database unavailable")

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         stageUpload(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStateNotRecorded)
	assert.Empty(t, f.objects.objects, "handler must not run without a recorded STARTED")
}

func TestProcessJobRetryWriteFails(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	f.objects.putErr = errors.New("connection reset")
	f.results.retryErr = errors.New("database unavailable")

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         stageUpload(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStateNotRecorded)
	assert.Empty(t, f.requeuer.bodies, "no requeue without a recorded RETRY")
}

func TestProcessJobRequeuePublishFails(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	f.objects.putErr = errors.New("connection reset")
	f.requeuer.err = errors.New("broker gone")

	msg := uploadDescriptor(t, 0, &jobqueue.UploadImagePayload{
		TempPath:         stageUpload(t),
		OriginalFilename: "scan.png",
		Status:           "Uploaded",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStateNotRecorded)
}

func extractDescriptor(t *testing.T, payload *jobqueue.ExtractFormPayload) *domain.JobMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.JobMessage{
		Descriptor: &jobqueue.Descriptor{
			JobID:   "aa8e27b2-2c19-4a6f-9f26-20c5b3e0a003",
			JobType: jobqueue.JobTypeExtractForm,
			Payload: raw,
		},
		DeliveryTag: 3,
	}
}

func seedStoredImage(t *testing.T, f *workerFixture, imageName, folderPath string) {
	t.Helper()
	key := imageName
	if folderPath != "" {
		key = folderPath + "/" + imageName
	}
	f.objects.objects[key] = []byte("png bytes")
	require.NoError(t, f.records.UpsertImage(context.Background(), &domain.ImageRecord{
		ImageName:  imageName,
		Status:     domain.ImageStatusUploaded,
		ImagePath:  "https://bucket.example.com/" + key,
		CreatedAt:  "20260820_103000",
		FolderPath: folderPath,
		SizeMB:     0.12,
	}))
}

func TestProcessJobExtractFormSuccess(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	seedStoredImage(t, f, "20260820_103000_000.png", "invoices")

	msg := extractDescriptor(t, &jobqueue.ExtractFormPayload{
		ImageName: "20260820_103000_000.png",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:0", "SUCCESS"}, f.results.states())
	assert.Equal(t, "20260820_103000_000.png", f.results.result["image_name"])
	assert.Equal(t, map[string]any{"full_name": "Jane Doe"}, f.results.result["analysis_result"])

	extraction, ok := f.records.extractions["20260820_103000_000.png"]
	require.True(t, ok)
	assert.Equal(t, domain.ImageStatusCompleted, extraction.Status)

	image, err := f.records.GetImage(context.Background(), "20260820_103000_000.png")
	require.NoError(t, err)
	assert.Equal(t, domain.ImageStatusCompleted, image.Status)
}

func TestProcessJobExtractFormRejectedDocument(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	seedStoredImage(t, f, "20260820_103000_000.png", "")
	f.inference.err = fmt.Errorf("%w: unsupported layout", inference.ErrInvalidDocument)

	msg := extractDescriptor(t, &jobqueue.ExtractFormPayload{
		ImageName: "20260820_103000_000.png",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:0", "FAILURE"}, f.results.states())
	assert.Equal(t, domain.ErrKindInvalidDocument, f.results.failureKind)
	assert.Empty(t, f.requeuer.bodies, "rejected documents are never retried")
}

func TestProcessJobExtractFormInferenceOutage(t *testing.T) {
	f := newWorkerFixture(t, quickRetry(3))
	seedStoredImage(t, f, "20260820_103000_000.png", "")
	f.inference.err = fmt.Errorf("%w: status 503", inference.ErrInference)

	msg := extractDescriptor(t, &jobqueue.ExtractFormPayload{
		ImageName: "20260820_103000_000.png",
	})

	err := f.worker.processJob(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"STARTED:0", "RETRY:1"}, f.results.states())
	require.Len(t, f.requeuer.bodies, 1)
}
