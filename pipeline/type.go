package pipeline

import (
	"github.com/khaledhikmat/framex-go/model"
)

// FrameSource yields decoded frames in strictly increasing index order.
// Read returns io.EOF at end of stream and *model.FrameDecodeError for a
// frame that could not be decoded; both leave the source usable until Close.
type FrameSource interface {
	Info() model.SourceInfo
	Read() (model.RawFrame, error)
	// Skip advances past one frame without converting it to an image.
	Skip() error
	Close() error
}

// Observer receives progress from an extraction run. Calls happen on the
// orchestrator goroutine, in frame order.
type Observer interface {
	Scored(sample model.ScoreSample)
	Captured(rec model.CaptureRecord)
	Progress(p model.Progress)
}

type observers []Observer

func (o observers) scored(s model.ScoreSample) {
	for _, obs := range o {
		obs.Scored(s)
	}
}

func (o observers) captured(rec model.CaptureRecord) {
	for _, obs := range o {
		obs.Captured(rec)
	}
}

func (o observers) progress(p model.Progress) {
	for _, obs := range o {
		obs.Progress(p)
	}
}
