package model

import (
	"errors"
	"io"
	"testing"

	stackerr "github.com/mdobak/go-xerrors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestIsFatal(t *testing.T) {
	open := &StreamOpenError{Path: "talk.mp4", Err: io.ErrUnexpectedEOF}
	cfg := &ConfigurationError{Field: "threshold", Reason: "must be positive"}
	decode := &FrameDecodeError{Index: 4, Err: io.ErrUnexpectedEOF}
	write := &OutputWriteError{Sequence: 2, Index: 40, Path: "x.jpg", Err: io.ErrShortWrite}

	assert.True(t, IsFatal(open))
	assert.True(t, IsFatal(cfg))
	assert.True(t, IsFatal(xerrors.Errorf("extract: %w", open)))
	assert.False(t, IsFatal(decode))
	assert.False(t, IsFatal(write))
	assert.False(t, IsFatal(nil))
}

func TestErrorsUnwrap(t *testing.T) {
	decode := &FrameDecodeError{Index: 7, Err: io.ErrUnexpectedEOF}
	assert.True(t, errors.Is(decode, io.ErrUnexpectedEOF))
	assert.Contains(t, decode.Error(), "frame 7")

	write := &OutputWriteError{Sequence: 3, Index: 12, Path: "out/a.jpg", Err: io.ErrShortWrite}
	assert.True(t, errors.Is(write, io.ErrShortWrite))
	assert.Contains(t, write.Error(), "out/a.jpg")
}

func TestGenError(t *testing.T) {
	err := GenError("writer", io.ErrShortWrite, map[string]interface{}{"index": 3}, "cannot write capture %d", 3)
	assert.Equal(t, "writer", err.Processor)
	assert.Equal(t, "cannot write capture 3", err.Message)
	assert.NotEmpty(t, err.StackTrace)
	assert.True(t, errors.Is(err, io.ErrShortWrite))
}

func TestRunSummaryProgress(t *testing.T) {
	s := RunSummary{
		RunID:          "r1",
		FramesRead:     10,
		FramesScanned:  5,
		FramesCaptured: 2,
		FailedFrames:   []int{3},
		WriteFailures:  []WriteFailure{{Sequence: 1}},
	}
	p := s.Progress()
	assert.Equal(t, 10, p.FramesRead)
	assert.Equal(t, 1, p.DecodeErrors)
	assert.Equal(t, 1, p.WriteErrors)
}

func TestConstructorsRecordStack(t *testing.T) {
	open := NewStreamOpenError("talk.mp4", io.ErrUnexpectedEOF)
	assert.True(t, IsFatal(open))
	assert.True(t, errors.Is(open, io.ErrUnexpectedEOF))
	assert.NotEmpty(t, stackerr.StackTrace(open.Err))

	decode := NewFrameDecodeError(7, io.ErrUnexpectedEOF)
	assert.Equal(t, "frame 7: decode failed: unexpected EOF", decode.Error())
	assert.NotEmpty(t, stackerr.StackTrace(decode.Err))

	write := NewOutputWriteError(2, 40, "x.jpg", io.ErrShortWrite)
	assert.False(t, IsFatal(write))
	assert.True(t, errors.Is(write, io.ErrShortWrite))
	assert.NotEmpty(t, stackerr.StackTrace(write.Err))

	manifest := NewOutputWriteError(0, -1, "talk_captures.json", io.ErrShortWrite)
	assert.Equal(t, "write talk_captures.json: short write", manifest.Error())

	assert.Nil(t, WithStack(nil))
}
