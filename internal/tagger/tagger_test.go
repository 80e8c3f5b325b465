package tagger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_MissingFileErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestRead_UnparseableFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("this is not a valid audio container"), 0o644))

	_, err := Read(path)
	assert.Error(t, err)
}
