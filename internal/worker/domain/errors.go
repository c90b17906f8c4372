package domain

import "errors"

// Failure kinds recorded on the job record and surfaced to pollers
const (
	ErrKindStorage         = "StorageError"
	ErrKindInference       = "InferenceError"
	ErrKindPostProcess     = "PostProcessError"
	ErrKindTimeout         = "TimeoutError"
	ErrKindInvalidDocument = "InvalidDocument"
	ErrKindInvalidPayload  = "InvalidPayload"
)

var (
	// ErrRecordNotFound is returned when an image record does not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrStateNotRecorded marks a processing attempt whose state change
	// could not be durably written. The delivery must be requeued so the
	// job is not lost silently.
	ErrStateNotRecorded = errors.New("job state not recorded")
)

// TransientError wraps failures worth retrying (collaborator timeouts,
// rate limits, network errors).
type TransientError struct {
	Kind string
	Err  error
}

func (e *TransientError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a retryable failure of the given kind
func NewTransient(kind string, err error) error {
	return &TransientError{Kind: kind, Err: err}
}

// PermanentError wraps failures that must not be retried (rejected
// documents, malformed payloads).
type PermanentError struct {
	Kind string
	Err  error
}

func (e *PermanentError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanent wraps err as a non-retryable failure of the given kind
func NewPermanent(kind string, err error) error {
	return &PermanentError{Kind: kind, Err: err}
}

// FailureKind extracts the recorded error kind from a wrapped failure
func FailureKind(err error) string {
	var t *TransientError
	if errors.As(err, &t) {
		return t.Kind
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return p.Kind
	}
	return ErrKindStorage
}

// IsPermanent reports whether err must skip the retry path
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
