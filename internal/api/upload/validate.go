package upload

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename checks the upload against the allowed extension list
func ValidateFilename(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename is required")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file has no extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension %s is not allowed", ext)
}

// ValidateSize checks the upload against the size limit
func ValidateSize(size, maxSize int64) error {
	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("file size %d exceeds limit of %d bytes", size, maxSize)
	}
	return nil
}
