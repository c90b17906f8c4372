package dto

import "encoding/json"

// QueueJobResponse acknowledges an accepted job submission
type QueueJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// TaskStatusResponse is the polling view of a job record
type TaskStatusResponse struct {
	JobID      string          `json:"job_id"`
	State      string          `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *TaskError      `json:"error,omitempty"`
	RetryCount *int            `json:"retry_count,omitempty"`
}

// TaskError is the classified failure surfaced on FAILURE states
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ExtractFormRequest asks for extraction of an already uploaded image
type ExtractFormRequest struct {
	ImageName  string  `json:"image_name" binding:"required"`
	ImagePath  string  `json:"image_path"`
	Size       float64 `json:"size"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	FolderPath string  `json:"folder_path"`
}

// ImageDTO is the client view of an image record
type ImageDTO struct {
	ImageName  string  `json:"image_name"`
	Status     string  `json:"status"`
	ImagePath  string  `json:"image_path"`
	CreatedAt  string  `json:"created_at"`
	FolderPath string  `json:"folder_path"`
	SizeMB     float64 `json:"size_mb"`
}

// CreateImageRequest records image metadata directly
type CreateImageRequest struct {
	ImageName  string  `json:"image_name" binding:"required"`
	Status     string  `json:"status" binding:"required"`
	ImagePath  string  `json:"image_path"`
	CreatedAt  string  `json:"created_at"`
	FolderPath string  `json:"folder_path"`
	SizeMB     float64 `json:"size_mb"`
}

// ListImagesRequest filters and paginates the image listing
type ListImagesRequest struct {
	FolderPath string `form:"folder_path"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

// ListImagesResponse carries one page of images and the next cursor
type ListImagesResponse struct {
	Images     []ImageDTO `json:"images"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FormDTO is the client view of a form extraction
type FormDTO struct {
	ImageName  string          `json:"image_name"`
	Status     string          `json:"status"`
	ImagePath  string          `json:"image_path"`
	CreatedAt  string          `json:"created_at"`
	FolderPath string          `json:"folder_path"`
	SizeMB     float64         `json:"size_mb"`
	Analysis   json.RawMessage `json:"analysis"`
}

// FolderDTO is the client view of an image folder
type FolderDTO struct {
	FolderPath string `json:"folder_path"`
	CreatedAt  string `json:"created_at"`
}

// CreateFolderRequest creates a logical folder
type CreateFolderRequest struct {
	FolderPath string `json:"folder_path" binding:"required"`
}

// RenameFolderRequest moves a folder and its stored objects
type RenameFolderRequest struct {
	OldPath string `json:"old_path" binding:"required"`
	NewPath string `json:"new_path" binding:"required"`
}
