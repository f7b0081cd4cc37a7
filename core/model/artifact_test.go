package model_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmsu/ojtinsight/core/model"
	"github.com/jrmsu/ojtinsight/pkg/errors"
)

type weights struct {
	LR float64 `json:"lr"`
	RF float64 `json:"rf"`
	NB float64 `json:"nb"`
}

func TestWriteReadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ensemble.json")

	require.NoError(t, model.WriteArtifact(path, "EnsembleWeights", weights{0.3, 0.5, 0.2}))

	var got weights
	require.NoError(t, model.ReadArtifact(path, "EnsembleWeights", &got))
	assert.Equal(t, weights{0.3, 0.5, 0.2}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestReadArtifact_NameMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaler.json")
	require.NoError(t, model.WriteArtifact(path, "StandardScaler", map[string]int{"n": 1}))

	var out map[string]int
	err := model.ReadArtifact(path, "LabelEncoder", &out)
	var valErr *errors.ValueError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "expected LabelEncoder")
}

func TestDecodeArtifact_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing version", `{"model_spec":{"name":"X"},"params":{}}`, "format_version is required"},
		{"bad version", `{"model_spec":{"name":"X","format_version":"2.0"},"params":{}}`, "unsupported format version"},
		{"missing name", `{"model_spec":{"format_version":"1.0"},"params":{}}`, "model name is required"},
		{"missing params", `{"model_spec":{"name":"X","format_version":"1.0"}}`, "params are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.DecodeArtifact(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
