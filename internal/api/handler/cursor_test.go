package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqminh/formextract-be/internal/api/storage"
)

func TestImageCursorRoundTrip(t *testing.T) {
	original := &storage.ImageCursor{
		CreatedAt: "20260820_103000",
		ImageName: "20260820_103000_042.png",
	}

	token := EncodeImageCursor(original)
	require.NotEmpty(t, token)

	decoded, err := DecodeImageCursor(token)
	require.NoError(t, err)
	assert.Equal(t, original.CreatedAt, decoded.CreatedAt)
	assert.Equal(t, original.ImageName, decoded.ImageName)
}

func TestDecodeImageCursorEmpty(t *testing.T) {
	cursor, err := DecodeImageCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor, "empty token means first page")
}

func TestDecodeImageCursorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "no separator", token: "bm9zZXBhcmF0b3I="},       // "noseparator"
		{name: "empty fields", token: "fA=="},                   // "|"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeImageCursor(tt.token)
			require.Error(t, err)
			assert.Nil(t, cursor)
		})
	}
}
