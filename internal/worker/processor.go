package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
)

// processJob runs one attempt of a job through the lifecycle state machine.
//
// A nil return means the outcome is durably recorded (SUCCESS, FAILURE, or
// RETRY plus a re-published descriptor) and the delivery can be ACKed.
// Errors wrapping domain.ErrStateNotRecorded mean nothing was recorded and
// the delivery must be redelivered.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	d := msg.Descriptor

	w.logger.Info("Processing job",
		slog.String("job_id", d.JobID),
		slog.String("job_type", d.JobType),
		slog.Int("retry_count", d.RetryCount),
		slog.String("worker_id", w.workerID),
	)

	// STARTED must be visible to pollers before the handler runs
	if err := w.results.MarkStarted(ctx, d.JobID, d.RetryCount); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateNotRecorded, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, d.JobID, heartbeatDone)
	defer close(heartbeatDone)

	result, execErr := w.executeJob(jobCtx, d)

	if execErr == nil {
		if err := w.results.MarkSuccess(ctx, d.JobID, result); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateNotRecorded, err)
		}

		w.logger.Info("Job completed successfully",
			slog.String("job_id", d.JobID),
			slog.String("job_type", d.JobType),
		)
		return nil
	}

	// Shutdown cancellation is not a job failure; let the broker redeliver
	if ctx.Err() != nil {
		return fmt.Errorf("%w: worker shutting down: %v", domain.ErrStateNotRecorded, ctx.Err())
	}

	// A handler timeout is a transient failure
	if errors.Is(execErr, context.DeadlineExceeded) {
		execErr = domain.NewTransient(domain.ErrKindTimeout, execErr)
	}

	if domain.IsPermanent(execErr) {
		w.logger.Warn("Job failed permanently",
			slog.String("job_id", d.JobID),
			slog.String("job_type", d.JobType),
			slog.String("error", execErr.Error()),
		)
		return w.recordFailure(ctx, d, execErr)
	}

	if d.RetryCount >= w.retry.MaxRetries {
		w.logger.Warn("Job exceeded max retries",
			slog.String("job_id", d.JobID),
			slog.Int("retry_count", d.RetryCount),
			slog.Int("max_retries", w.retry.MaxRetries),
			slog.String("error", execErr.Error()),
		)
		return w.recordFailure(ctx, d, execErr)
	}

	return w.scheduleRetry(ctx, d, execErr)
}

// recordFailure writes the terminal FAILURE state with the last error
func (w *Worker) recordFailure(ctx context.Context, d *jobqueue.Descriptor, execErr error) error {
	kind := domain.FailureKind(execErr)
	if err := w.results.MarkFailure(ctx, d.JobID, kind, execErr.Error()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateNotRecorded, err)
	}
	return nil
}

// scheduleRetry records RETRY, waits out the backoff and re-publishes the
// descriptor with an incremented retry count. The original delivery is
// only ACKed once the replacement is queued.
func (w *Worker) scheduleRetry(ctx context.Context, d *jobqueue.Descriptor, execErr error) error {
	next := d.RetryCount + 1

	if err := w.results.MarkRetry(ctx, d.JobID, next, execErr.Error()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateNotRecorded, err)
	}

	delay := backoffDelay(w.retry, next)

	w.logger.Info("Job will be retried",
		slog.String("job_id", d.JobID),
		slog.Int("retry_count", next),
		slog.Int("max_retries", w.retry.MaxRetries),
		slog.Duration("backoff", delay),
		slog.String("error", execErr.Error()),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return fmt.Errorf("%w: worker shutting down before requeue: %v", domain.ErrStateNotRecorded, ctx.Err())
	}

	retried := *d
	retried.RetryCount = next

	body, err := retried.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateNotRecorded, err)
	}

	if err := w.requeuer.PublishWithRetry(ctx, d.JobType, body, "application/json"); err != nil {
		return fmt.Errorf("%w: requeue failed: %v", domain.ErrStateNotRecorded, err)
	}

	return nil
}

// sendJobHeartbeat periodically marks the job record as alive while the
// handler runs
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	interval := w.heartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.results.Heartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
