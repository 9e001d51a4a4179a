package pipeline

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/framex-go/model"
)

// feedLevels feeds one uniform reduced frame per level, one per second of
// stream time, and returns the indices of the emitted events.
func feedLevels(d *Detector, lums []int) []int {
	var out []int
	for i, l := range lums {
		frame := model.RawFrame{Index: i, Timestamp: time.Duration(i) * time.Second}
		if _, ev := d.Feed(frame, uniformReduced(8, 8, uint8(l))); ev != nil {
			out = append(out, ev.Frame.Index)
		}
	}
	if ev := d.Flush(); ev != nil {
		out = append(out, ev.Frame.Index)
	}
	return out
}

func TestDetectorFirstFrameIsCaptured(t *testing.T) {
	d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3})
	assert.Equal(t, AwaitingReference, d.State())

	sample, ev := d.Feed(model.RawFrame{Index: 0}, uniformReduced(8, 8, levelA))
	require.NotNil(t, ev)
	assert.Equal(t, 0, ev.Frame.Index)
	assert.Zero(t, sample.Score)
	assert.Equal(t, Stable, d.State())
}

func TestDetectorStateTransitions(t *testing.T) {
	d := NewDetector(MeanAbsDiff{}, DetectorOptions{
		Threshold: 0.3,
		Debounce:  Debounce{Frames: 2},
	})

	steps := []struct {
		lum   int
		state DetectorState
		emit  bool
	}{
		{levelA, Stable, true},
		{levelA, Stable, false},
		{levelB, Triggered, false},
		{levelB, Triggered, false},
		{levelB, Stable, true},
		{levelB, Stable, false},
		{levelA, Triggered, false},
		{levelB, Stable, false},
	}

	for i, st := range steps {
		_, ev := d.Feed(model.RawFrame{Index: i}, uniformReduced(8, 8, uint8(st.lum)))
		assert.Equal(t, st.state, d.State(), "step %d", i)
		assert.Equal(t, st.emit, ev != nil, "step %d", i)
		if i == 4 {
			require.NotNil(t, ev)
			assert.Equal(t, 2, ev.Frame.Index, "the candidate is captured, not the confirming frame")
		}
	}
}

func TestDetectorScoresAgainstLastAcceptedFrame(t *testing.T) {
	// A slow drift never differs from its neighbour by much, but does from
	// the reference.
	d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3})
	lums := []int{0, 20, 40, 60, 80, 100, 120}
	assert.Equal(t, []int{0, 4}, feedLevels(d, lums))
}

func TestDetectorDebounceRejectsSpike(t *testing.T) {
	lums := concat(repeat(levelA, 5), []int{levelB}, repeat(levelA, 4))

	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprintf("debounce %d", n), func(t *testing.T) {
			d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3, Debounce: Debounce{Frames: n}})
			assert.Equal(t, []int{0}, feedLevels(d, lums))
		})
	}
}

func TestDetectorTwoFrameSpike(t *testing.T) {
	lums := concat(repeat(levelA, 5), []int{levelB, levelB}, repeat(levelA, 3))

	d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3, Debounce: Debounce{Frames: 1}})
	assert.Equal(t, []int{0, 5, 7}, feedLevels(d, lums))

	d = NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3, Debounce: Debounce{Frames: 3}})
	assert.Equal(t, []int{0}, feedLevels(d, lums))
}

func TestDetectorDurationDebounce(t *testing.T) {
	opts := DetectorOptions{Threshold: 0.3, Debounce: Debounce{Duration: 2 * time.Second}}

	persistent := concat(repeat(levelA, 5), repeat(levelB, 5))
	assert.Equal(t, []int{0, 5}, feedLevels(NewDetector(MeanAbsDiff{}, opts), persistent))

	short := concat(repeat(levelA, 5), repeat(levelB, 2), repeat(levelA, 3))
	assert.Equal(t, []int{0}, feedLevels(NewDetector(MeanAbsDiff{}, opts), short))
}

func TestDetectorFlush(t *testing.T) {
	lums := concat(repeat(levelA, 9), []int{levelB})

	d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3})
	assert.Equal(t, []int{0}, feedLevels(d, lums))
	assert.Equal(t, Stable, d.State())

	d = NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.3, FlushPending: true})
	assert.Equal(t, []int{0, 9}, feedLevels(d, lums))
}

func TestDetectorCapturesByThreshold(t *testing.T) {
	lums := concat(
		repeat(0, 3),
		repeat(40, 3),
		repeat(80, 3),
		repeat(160, 3),
		repeat(165, 3),
		repeat(255, 3),
	)

	tests := []struct {
		threshold float64
		captures  int
	}{
		{0.1, 5},
		{0.2, 4},
		{0.35, 3},
		{0.5, 2},
		{0.7, 2},
		{0.9, 2},
	}

	for _, tt := range tests {
		d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: tt.threshold})
		assert.Equal(t, tt.captures, len(feedLevels(d, lums)), "threshold %.2f", tt.threshold)
	}
}

// With a single change in the stream, raising the threshold never adds a
// capture.
func TestDetectorMonotonicForSingleChange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	thresholds := []float64{0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1}

	for i := 0; i < 100; i++ {
		from, to := rng.Intn(256), rng.Intn(256)
		debounce := 1 + rng.Intn(3)
		lums := concat(repeat(from, 1+rng.Intn(5)), repeat(to, debounce+1+rng.Intn(4)))

		prev := len(lums) + 1
		for _, th := range thresholds {
			d := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: th, Debounce: Debounce{Frames: debounce}})
			got := len(feedLevels(d, lums))
			assert.LessOrEqual(t, got, prev, "%d -> %d at threshold %.2f", from, to, th)
			prev = got
		}
	}
}

// The reference only moves on accepted frames. A higher threshold can leave
// it behind, and later frames then differ from it by more.
func TestDetectorThresholdNotMonotonicAcrossChanges(t *testing.T) {
	lums := []int{0, 0, 140, 140, 255, 255, 60, 60}

	low := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.5})
	assert.Equal(t, []int{0, 2}, feedLevels(low, lums))

	high := NewDetector(MeanAbsDiff{}, DetectorOptions{Threshold: 0.6})
	assert.Equal(t, []int{0, 4, 6}, feedLevels(high, lums))
}

func TestDetectorStateString(t *testing.T) {
	assert.Equal(t, "awaiting_reference", AwaitingReference.String())
	assert.Equal(t, "stable", Stable.String())
	assert.Equal(t, "triggered", Triggered.String())
}
