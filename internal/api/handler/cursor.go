package handler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tqminh/formextract-be/internal/api/storage"
)

// DecodeImageCursor parses an opaque pagination token back into a keyset
// position. Empty input means the first page.
func DecodeImageCursor(cursorStr string) (*storage.ImageCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	return &storage.ImageCursor{
		CreatedAt: parts[0],
		ImageName: parts[1],
	}, nil
}

// EncodeImageCursor builds the opaque token for the next page
func EncodeImageCursor(cursor *storage.ImageCursor) string {
	cs := fmt.Sprintf("%s|%s", cursor.CreatedAt, cursor.ImageName)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
