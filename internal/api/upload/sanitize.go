package upload

import (
	"fmt"
	"path"
	"strings"
)

// SanitizeFolderPath normalizes a client-supplied folder path into a safe
// relative object key prefix. Empty input means the bucket root.
func SanitizeFolderPath(folderPath string) (string, error) {
	trimmed := strings.TrimSpace(folderPath)
	if trimmed == "" {
		return "", nil
	}

	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", nil
	}

	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("folder path must not escape the bucket root")
	}

	for _, segment := range strings.Split(cleaned, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid folder path segment %q", segment)
		}
	}

	return cleaned, nil
}
