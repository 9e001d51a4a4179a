package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/config"
)

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		path, backend, want string
	}{
		{"talk.mp4", config.BackendAuto, config.BackendGoCV},
		{"talk.MPG", config.BackendAuto, config.BackendMPEG},
		{"talk.mpeg", "", config.BackendMPEG},
		{"talk.mkv", "", config.BackendGoCV},
		{"talk.mpg", config.BackendGoCV, config.BackendGoCV},
		{"talk.mp4", config.BackendMPEG, config.BackendMPEG},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveBackend(tt.path, tt.backend), "%s/%s", tt.path, tt.backend)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mp4"), config.BackendAuto)

	var openErr *model.StreamOpenError
	require.True(t, errors.As(err, &openErr))
	assert.True(t, model.IsFatal(err))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenDirectory(t *testing.T) {
	_, err := Open(t.TempDir(), config.BackendAuto)
	var openErr *model.StreamOpenError
	assert.True(t, errors.As(err, &openErr))
}

func TestProbeMP4RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an mp4 file"), 0o644))

	_, err := ProbeMP4(path)
	assert.Error(t, err)

	_, err = ProbeMP4(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestFrameTime(t *testing.T) {
	assert.Equal(t, 2*time.Second, frameTime(50, 25))
	assert.Equal(t, time.Second, frameTime(25, 0), "unknown rate assumes 25 fps")
	assert.Equal(t, 500*time.Millisecond, frameTime(15, 30))
}
