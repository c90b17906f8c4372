package domain

import (
	"github.com/tqminh/formextract-be/internal/jobqueue"
)

// JobMessage pairs a decoded descriptor with its broker delivery tag
type JobMessage struct {
	Descriptor  *jobqueue.Descriptor
	DeliveryTag uint64
}

// ImageRecord is the image metadata row keyed by image name.
// Upsert-by-name keeps upload and extraction handlers safe to re-run.
type ImageRecord struct {
	ImageName  string  `db:"image_name"`
	Status     string  `db:"status"`
	ImagePath  string  `db:"image_path"`
	CreatedAt  string  `db:"created_at"`
	FolderPath string  `db:"folder_path"`
	SizeMB     float64 `db:"size_mb"`
}

// FormExtraction is the persisted extraction output for one image
type FormExtraction struct {
	ImageName  string
	Status     string
	ImagePath  string
	CreatedAt  string
	FolderPath string
	SizeMB     float64
	Analysis   map[string]any
}

// Image record statuses, mirrored by the frontend
const (
	ImageStatusUploaded   = "Uploaded"
	ImageStatusProcessing = "Processing"
	ImageStatusCompleted  = "Completed"
)
