package model

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// WithStack records the caller's stack on err so that the logger can print
// where it started. Nil stays nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.WithStackTrace(err, 1)
}

// StreamOpenError means the input could not be opened at all. Fatal.
type StreamOpenError struct {
	Path string
	Err  error
}

func NewStreamOpenError(path string, err error) *StreamOpenError {
	return &StreamOpenError{Path: path, Err: xerrors.WithStackTrace(err, 1)}
}

func (e *StreamOpenError) Error() string {
	return fmt.Sprintf("cannot open stream %s: %v", e.Path, e.Err)
}

func (e *StreamOpenError) Unwrap() error {
	return e.Err
}

// FrameDecodeError reports a single frame that failed to decode. The run
// skips the frame and continues.
type FrameDecodeError struct {
	Index int
	Err   error
}

func NewFrameDecodeError(index int, err error) *FrameDecodeError {
	return &FrameDecodeError{Index: index, Err: xerrors.WithStackTrace(err, 1)}
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("frame %d: decode failed: %v", e.Index, e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// OutputWriteError reports a capture (or manifest) that could not be
// persisted. The run records it and continues. Sequence is 0 for the
// manifest.
type OutputWriteError struct {
	Sequence int
	Index    int
	Path     string
	Err      error
}

func NewOutputWriteError(sequence, index int, path string, err error) *OutputWriteError {
	return &OutputWriteError{Sequence: sequence, Index: index, Path: path, Err: xerrors.WithStackTrace(err, 1)}
}

func (e *OutputWriteError) Error() string {
	if e.Sequence == 0 {
		return fmt.Sprintf("write %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("capture %d (frame %d): write %s: %v", e.Sequence, e.Index, e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// ConfigurationError rejects a setting at startup. Fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func IsFatal(err error) bool {
	var openErr *StreamOpenError
	var cfgErr *ConfigurationError
	return errors.As(err, &openErr) || errors.As(err, &cfgErr)
}
