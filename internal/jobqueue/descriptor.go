package jobqueue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job types. Each type has its own queue, bound with the type as routing key.
const (
	JobTypeUploadImage = "upload_image"
	JobTypeExtractForm = "extract_form"
)

// Job record states. Transitions are monotonic:
// PENDING -> STARTED -> {RETRY -> STARTED}* -> SUCCESS | FAILURE.
// SUCCESS and FAILURE are terminal.
const (
	StatePending = "PENDING"
	StateStarted = "STARTED"
	StateRetry   = "RETRY"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
)

// IsTerminalState reports whether state permits no further transitions
func IsTerminalState(state string) bool {
	return state == StateSuccess || state == StateFailure
}

// Descriptor is the unit of queued work carried by the broker.
// Immutable after enqueue except RetryCount, which the executor owns.
type Descriptor struct {
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	SubmittedAt time.Time       `json:"submitted_at"`
	RetryCount  int             `json:"retry_count"`
}

// Encode serializes the descriptor for publishing
func (d *Descriptor) Encode() ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job descriptor: %w", err)
	}
	return body, nil
}

// DecodeDescriptor parses a broker message body into a Descriptor
func DecodeDescriptor(body []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode job descriptor: %w", err)
	}
	if d.JobID == "" {
		return nil, fmt.Errorf("job descriptor missing job_id")
	}
	if d.JobType == "" {
		return nil, fmt.Errorf("job descriptor missing job_type")
	}
	return &d, nil
}

// UploadImagePayload is the input for an upload_image job.
// TempPath points at the file the API service saved before enqueueing.
type UploadImagePayload struct {
	TempPath         string `json:"temp_path"`
	OriginalFilename string `json:"original_filename"`
	Status           string `json:"status"`
	FolderPath       string `json:"folder_path"`
}

// ExtractFormPayload is the input for an extract_form job. The image
// metadata record must already exist when the job is submitted.
type ExtractFormPayload struct {
	ImageName  string  `json:"image_name"`
	ImagePath  string  `json:"image_path"`
	Size       float64 `json:"size"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	FolderPath string  `json:"folder_path"`
}
