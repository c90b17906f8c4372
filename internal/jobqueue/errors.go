package jobqueue

import "errors"

var (
	// ErrInvalidPayload is returned when a submitted payload fails
	// validation. Never retried; the caller must fix the request.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrQueueUnavailable is returned when the broker cannot accept the
	// descriptor. Distinct from validation so callers may retry submission.
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// ErrUnknownJobType is returned for job types with no registered queue
	ErrUnknownJobType = errors.New("unknown job type")
)
