package roster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRoster = `[
  {"id": "ivan", "name": "Ivan", "api_id": 12345678, "api_hash": "abc123", "phone": "+79991234567", "timezone": "Europe/Moscow"},
  {"id": "olga", "name": "Olga", "api_id": 87654321, "api_hash": "def456", "phone": "+79997654321"}
]`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(validRoster), 0o600))

	reps, err := Load(path, time.UTC)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "ivan", reps[0].ID)
	assert.Equal(t, "Ivan", reps[0].Name)
	assert.Equal(t, "Europe/Moscow", reps[0].Loc().String())
	assert.Equal(t, time.UTC, reps[1].Loc())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), time.UTC)
	require.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"empty", `[]`},
		{"bad id", `[{"id": "Ivan K", "name": "Ivan", "api_id": 1, "api_hash": "x", "phone": "+1"}]`},
		{"missing name", `[{"id": "ivan", "api_id": 1, "api_hash": "x", "phone": "+1"}]`},
		{"missing credentials", `[{"id": "ivan", "name": "Ivan", "phone": "+1"}]`},
		{"missing phone", `[{"id": "ivan", "name": "Ivan", "api_id": 1, "api_hash": "x"}]`},
		{"duplicate", `[
			{"id": "ivan", "name": "Ivan", "api_id": 1, "api_hash": "x", "phone": "+1"},
			{"id": "ivan", "name": "Ivan 2", "api_id": 2, "api_hash": "y", "phone": "+2"}]`},
		{"bad timezone", `[{"id": "ivan", "name": "Ivan", "api_id": 1, "api_hash": "x", "phone": "+1", "timezone": "Mars/Base"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), time.UTC)
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte(`[]`), time.UTC)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestSchema(t *testing.T) {
	raw, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "array", doc["type"])

	items, ok := doc["items"].(map[string]any)
	require.True(t, ok)
	props, ok := items["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"id", "name", "api_id", "api_hash", "phone", "timezone"} {
		assert.Contains(t, props, key)
	}
	assert.ElementsMatch(t, []any{"id", "name", "api_id", "api_hash", "phone"}, items["required"])
}
