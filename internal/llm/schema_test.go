package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFieldsJSONSchema(t *testing.T) {
	fields := map[string]any{
		"full_name":  "JANE  DOE",
		"birth_date": "1/2/90",
		"address":    "123 Main st",
	}

	schema := BuildFieldsJSONSchema(fields)

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 3)

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"address", "birth_date", "full_name"}, required)
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildFieldsJSONSchema(map[string]any{
		"full_name":  "",
		"birth_date": "",
	})

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "matching object",
			data: `{"full_name":"Jane Doe","birth_date":"1990-01-02"}`,
		},
		{
			name:    "missing required key",
			data:    `{"full_name":"Jane Doe"}`,
			wantErr: true,
		},
		{
			name:    "extra key rejected",
			data:    `{"full_name":"Jane Doe","birth_date":"1990-01-02","confidence":0.9}`,
			wantErr: true,
		},
		{
			name:    "wrong value type",
			data:    `{"full_name":"Jane Doe","birth_date":19900102}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `full_name: Jane`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONAgainstSchema(schema, []byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
