package model

import (
	"encoding/json"
	"time"
)

// JobRecord is the polled lifecycle row for one job
type JobRecord struct {
	JobID           string          `db:"job_id"`
	State           string          `db:"state"`
	Result          json.RawMessage `db:"result"`
	ErrorKind       *string         `db:"error_kind"`
	ErrorMessage    *string         `db:"error_message"`
	RetryCount      int             `db:"retry_count"`
	LastHeartbeatAt *time.Time      `db:"last_heartbeat_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// ImageDetail is the image metadata row keyed by image name
type ImageDetail struct {
	ImageName  string  `db:"image_name"`
	Status     string  `db:"status"`
	ImagePath  string  `db:"image_path"`
	CreatedAt  string  `db:"created_at"`
	FolderPath string  `db:"folder_path"`
	SizeMB     float64 `db:"size_mb"`
}

// FormExtraction is a completed extraction row
type FormExtraction struct {
	ImageName  string          `db:"image_name"`
	Status     string          `db:"status"`
	ImagePath  string          `db:"image_path"`
	CreatedAt  string          `db:"created_at"`
	FolderPath string          `db:"folder_path"`
	SizeMB     float64         `db:"size_mb"`
	Analysis   json.RawMessage `db:"analysis"`
}

// ImageFolder is a logical folder grouping stored images
type ImageFolder struct {
	FolderPath string    `db:"folder_path"`
	CreatedAt  time.Time `db:"created_at"`
}

// Image statuses surfaced to clients
const (
	ImageStatusUploaded   = "Uploaded"
	ImageStatusProcessing = "Processing"
	ImageStatusCompleted  = "Completed"
)
