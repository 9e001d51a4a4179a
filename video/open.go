// Package video provides the concrete frame sources: OpenCV through gocv
// for any container and codec OpenCV understands, and a pure-Go MPEG-1
// decoder that needs no native libraries.
package video

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/pipeline"
	"github.com/khaledhikmat/framex-go/service/config"
)

// MaxConsecutiveDecodeErrors failed reads in a row, with no decoded frame
// after them, end an OpenCV stream.
const MaxConsecutiveDecodeErrors = 25

// ResolveBackend maps "auto" to a concrete backend for path.
func ResolveBackend(path, backend string) string {
	if backend != "" && backend != config.BackendAuto {
		return backend
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mpg", ".mpeg", ".m1v":
		return config.BackendMPEG
	default:
		return config.BackendGoCV
	}
}

// Open opens path with the requested backend. Any failure is a
// *model.StreamOpenError.
func Open(path, backend string) (pipeline.FrameSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, model.NewStreamOpenError(path, err)
	}
	if fi.IsDir() {
		return nil, model.NewStreamOpenError(path, errors.New("is a directory"))
	}

	var src pipeline.FrameSource
	switch ResolveBackend(path, backend) {
	case config.BackendGoCV:
		src, err = openGoCV(path)
	case config.BackendMPEG:
		src, err = openMPEG(path)
	default:
		err = errors.New("unknown backend " + backend)
	}
	if err != nil {
		return nil, model.NewStreamOpenError(path, err)
	}
	return src, nil
}
