package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channelcast/internal/config"
)

func TestNew_NoneBackendReturnsNoop(t *testing.T) {
	m, err := New(context.Background(), config.Archive{Backend: ""})
	require.NoError(t, err)
	assert.IsType(t, NoopMirror{}, m)
}

func TestNew_UnknownBackendErrors(t *testing.T) {
	_, err := New(context.Background(), config.Archive{Backend: "azure"})
	assert.Error(t, err)
}

func TestNoopMirror_UploadAndExistsAreNoops(t *testing.T) {
	var m NoopMirror
	assert.NoError(t, m.Upload(context.Background(), "/tmp/x.mp3", "key"))

	exists, err := m.Exists(context.Background(), "key")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestEscapeDriveQuery_EscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeDriveQuery(`O'Brien`))
}
