package pipeline

import (
	"time"

	"github.com/khaledhikmat/framex-go/model"
)

type DetectorState int

const (
	AwaitingReference DetectorState = iota
	Stable
	Triggered
)

func (s DetectorState) String() string {
	switch s {
	case AwaitingReference:
		return "awaiting_reference"
	case Stable:
		return "stable"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Debounce is how long an elevated score must persist after the candidate
// frame before the candidate is confirmed. With a positive Duration the
// window is measured in stream time; otherwise it is Frames subsequent
// sampled frames.
type Debounce struct {
	Frames   int
	Duration time.Duration
}

type DetectorOptions struct {
	Threshold float64
	Debounce  Debounce
	// FlushPending emits a candidate that is still pending at end of stream.
	FlushPending bool
}

// Detector decides which sampled frames are new captures. It owns the
// reference frame, which is the reduced form of the last accepted capture,
// and compares every frame against it rather than against the previous
// frame. Not safe for concurrent use.
type Detector struct {
	scorer Scorer
	opts   DetectorOptions

	state     DetectorState
	reference model.ReducedFrame
	candidate *model.ChangeEvent
	confirmed int
}

func NewDetector(scorer Scorer, opts DetectorOptions) *Detector {
	if opts.Debounce.Duration <= 0 && opts.Debounce.Frames < 1 {
		opts.Debounce.Frames = 1
	}
	return &Detector{
		scorer: scorer,
		opts:   opts,
		state:  AwaitingReference,
	}
}

func (d *Detector) State() DetectorState {
	return d.state
}

// Feed scores one sampled frame against the reference and advances the
// state machine. The returned event, if any, is the frame to capture; it is
// not necessarily the frame just fed.
func (d *Detector) Feed(frame model.RawFrame, reduced model.ReducedFrame) (model.ScoreSample, *model.ChangeEvent) {
	sample := model.ScoreSample{
		Index:     frame.Index,
		Timestamp: frame.Timestamp,
	}

	if d.state == AwaitingReference {
		d.reference = reduced
		d.state = Stable
		return sample, &model.ChangeEvent{Frame: frame, Reduced: reduced}
	}

	sample.Score = d.scorer.Score(d.reference, reduced)
	elevated := sample.Score >= d.opts.Threshold

	switch d.state {
	case Stable:
		if !elevated {
			return sample, nil
		}
		d.candidate = &model.ChangeEvent{Frame: frame, Reduced: reduced, Score: sample.Score}
		d.confirmed = 0
		d.state = Triggered
		return sample, nil

	case Triggered:
		if !elevated {
			// Transient: the reference stays what it was before the spike.
			d.candidate = nil
			d.confirmed = 0
			d.state = Stable
			return sample, nil
		}
		d.confirmed++
		if !d.windowElapsed(frame) {
			return sample, nil
		}
		return sample, d.accept()
	}

	return sample, nil
}

func (d *Detector) windowElapsed(frame model.RawFrame) bool {
	if d.opts.Debounce.Duration > 0 {
		return frame.Timestamp-d.candidate.Frame.Timestamp >= d.opts.Debounce.Duration
	}
	return d.confirmed >= d.opts.Debounce.Frames
}

func (d *Detector) accept() *model.ChangeEvent {
	ev := d.candidate
	d.reference = ev.Reduced
	d.candidate = nil
	d.confirmed = 0
	d.state = Stable
	return ev
}

// Flush ends the stream. A pending candidate is emitted only when
// FlushPending is set; otherwise it is dropped as unconfirmed.
func (d *Detector) Flush() *model.ChangeEvent {
	if d.state != Triggered || d.candidate == nil {
		return nil
	}
	if !d.opts.FlushPending {
		d.candidate = nil
		d.confirmed = 0
		d.state = Stable
		return nil
	}
	return d.accept()
}
