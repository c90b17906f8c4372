package domain

import "errors"

var (
	// ErrImageNotFound is returned when no image record matches the name
	ErrImageNotFound = errors.New("image not found")

	// ErrFormNotFound is returned when no extraction exists for the image
	ErrFormNotFound = errors.New("form extraction not found")

	// ErrFolderNotFound is returned when the folder record does not exist
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderExists is returned when creating a folder that already exists
	ErrFolderExists = errors.New("folder already exists")

	// ErrJobRecordNotFound distinguishes "no record yet" from real
	// failures. Pollers report it as PENDING, not as an error.
	ErrJobRecordNotFound = errors.New("job record not found")
)
