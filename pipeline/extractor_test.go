package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrideFor(t *testing.T) {
	assert.Equal(t, 1, StrideFor(30, 0))
	assert.Equal(t, 30, StrideFor(30, time.Second))
	assert.Equal(t, 15, StrideFor(29.97, 500*time.Millisecond))
	assert.Equal(t, 50, StrideFor(0, 2*time.Second), "unknown fps falls back to 25")
	assert.Equal(t, 1, StrideFor(25, time.Millisecond))
}

func TestExtractorSlideChange(t *testing.T) {
	rec := &recorder{}
	frames := levels(concat(repeat(levelA, 5), repeat(levelB, 5))...)

	summary, err := runFrames(runConfig{folder: t.TempDir(), debounce: Debounce{Frames: 1}}, frames, rec)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 5}, captureIndices(summary.Captures))
	assert.Equal(t, 10, summary.FramesRead)
	assert.Equal(t, 10, summary.FramesTotal)
	assert.Equal(t, 10, summary.FramesScanned)
	assert.Equal(t, 2, summary.FramesCaptured)
	assert.Empty(t, summary.FailedFrames)
	assert.False(t, summary.Cancelled)

	assert.Len(t, rec.samples, 10)
	assert.Zero(t, rec.samples[0].Score)
	assert.Equal(t, []int{0, 5}, captureIndices(rec.captures))
	require.NotEmpty(t, rec.progress)
	last := rec.progress[len(rec.progress)-1]
	assert.Equal(t, 2, last.FramesCaptured)
	assert.Equal(t, "test-run", last.RunID)

	for _, c := range summary.Captures {
		_, err := os.Stat(c.Path)
		assert.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(summary.OutputFolder, "talk_captures.json"))
	assert.NoError(t, err)
}

func TestExtractorDebounceRejectsSpike(t *testing.T) {
	frames := levels(concat(repeat(levelA, 5), []int{levelB}, repeat(levelA, 4))...)

	summary, err := runFrames(runConfig{folder: t.TempDir(), debounce: Debounce{Frames: 3}}, frames)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, captureIndices(summary.Captures))
}

func TestExtractorStride(t *testing.T) {
	frames := levels(concat(repeat(levelA, 5), repeat(levelB, 5))...)
	src := newSliceSource(frames)

	ext, err := newTestExtractor(runConfig{folder: t.TempDir(), stride: 2})
	require.NoError(t, err)
	summary, err := ext.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 6}, captureIndices(summary.Captures))
	assert.Equal(t, []int{0, 2, 4, 6, 8}, src.readIndices(), "odd frames are never decoded")
	assert.Equal(t, 10, summary.FramesRead)
	assert.Equal(t, 5, summary.FramesScanned)
	assert.Equal(t, 5, summary.FramesSkipped)
	assert.Equal(t, 2, summary.Stride)
}

func TestExtractorContinuesAfterDecodeError(t *testing.T) {
	lums := concat(repeat(levelA, 5), repeat(levelB, 5))
	lums[3] = -1
	frames := levels(lums...)

	summary, err := runFrames(runConfig{folder: t.TempDir()}, frames)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, summary.FailedFrames)
	assert.Equal(t, []int{0, 5}, captureIndices(summary.Captures))
	assert.Equal(t, 9, summary.FramesScanned)
	assert.Equal(t, 10, summary.FramesRead)
	assert.Equal(t, 1, summary.Progress().DecodeErrors)
}

func TestExtractorRecordsWriteFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	frames := levels(concat(repeat(levelA, 5), repeat(levelB, 5))...)
	summary, err := runFrames(runConfig{folder: blocker}, frames)

	require.NoError(t, err, "write failures are recorded, not returned")
	require.Len(t, summary.WriteFailures, 3, "both captures and the manifest")
	assert.Empty(t, summary.Captures)
	assert.Equal(t, 10, summary.FramesScanned, "write failures do not stop the run")
	assert.Equal(t, 2, summary.WriteFailures[1].Sequence)
	assert.Zero(t, summary.WriteFailures[2].Sequence)
	assert.Equal(t, filepath.Join(blocker, "talk_captures.json"), summary.WriteFailures[2].Path)
}

func TestExtractorManifestFailureKeepsCaptures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "talk_captures.json"), 0o755))

	frames := levels(concat(repeat(levelA, 5), repeat(levelB, 5))...)
	summary, err := runFrames(runConfig{folder: dir}, frames)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, captureIndices(summary.Captures))
	require.Len(t, summary.WriteFailures, 1)
	assert.Equal(t, -1, summary.WriteFailures[0].Index)
	assert.Contains(t, summary.WriteFailures[0].Error, "talk_captures.json")
	assert.Equal(t, 1, summary.Progress().WriteErrors)
}

func TestExtractorFlushPending(t *testing.T) {
	frames := levels(concat(repeat(levelA, 9), []int{levelB})...)

	summary, err := runFrames(runConfig{folder: t.TempDir()}, frames)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, captureIndices(summary.Captures))

	summary, err = runFrames(runConfig{folder: t.TempDir(), flushPending: true}, frames)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 9}, captureIndices(summary.Captures))
}

func TestExtractorIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	frames := levels(concat(repeat(levelA, 4), repeat(levelB, 4), repeat(90, 4))...)

	snapshot := func() map[string][]byte {
		out := map[string][]byte{}
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			out[e.Name()] = data
		}
		return out
	}

	first, err := runFrames(runConfig{folder: dir}, frames)
	require.NoError(t, err)
	before := snapshot()
	require.Len(t, before, len(first.Captures)+1)

	second, err := runFrames(runConfig{folder: dir}, frames)
	require.NoError(t, err)
	assert.Equal(t, before, snapshot())
	assert.Equal(t, captureIndices(first.Captures), captureIndices(second.Captures))
	for _, c := range second.Captures {
		assert.True(t, c.Reused)
	}

	_, err = runFrames(runConfig{folder: dir, overwrite: true}, frames)
	require.NoError(t, err)
	assert.Equal(t, before, snapshot(), "re-encoding the same frames yields the same bytes")
}

func TestExtractorCancelledBeforeStart(t *testing.T) {
	canxCtx, cancel := context.WithCancel(context.Background())
	cancel()

	ext, err := newTestExtractor(runConfig{folder: t.TempDir()})
	require.NoError(t, err)
	summary, err := ext.Run(canxCtx, newSliceSource(levels(repeat(levelA, 10)...)))

	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Captures)
	_, statErr := os.Stat(filepath.Join(summary.OutputFolder, "talk_captures.json"))
	assert.NoError(t, statErr, "the manifest is written for partial runs")
}

func TestExtractorCancelledMidStream(t *testing.T) {
	canxCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newSliceSource(levels(concat(repeat(levelA, 50), repeat(levelB, 50))...))
	src.onRead = func(index int) {
		if index == 20 {
			cancel()
		}
	}

	ext, err := newTestExtractor(runConfig{folder: t.TempDir()})
	require.NoError(t, err)
	summary, err := ext.Run(canxCtx, src)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, summary.Cancelled)
	assert.Less(t, summary.FramesScanned, 21)
	assert.LessOrEqual(t, len(summary.Captures), 1)
}
