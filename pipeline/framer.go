package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/lgr"
)

// frameItem is one sampled position in the stream: either a decoded and
// reduced frame, or the decode error for that position.
type frameItem struct {
	frame   model.RawFrame
	reduced model.ReducedFrame
	index   int
	err     error
}

// framerStats is written by the framer before it closes its channel, so the
// consumer may read it once the channel is drained.
type framerStats struct {
	read    int
	skipped int
	err     error
}

// framer reads the source in order, samples every stride-th frame, reduces
// it and hands it to the orchestrator through out. It closes out when the
// stream ends, the source fails or ctx is cancelled.
func framer(canxCtx context.Context, src FrameSource, stride int, reducer *Reducer, out chan<- frameItem, stats *framerStats) {
	defer close(out)

	if stride < 1 {
		stride = 1
	}

	for position := 0; ; position++ {
		if canxCtx.Err() != nil {
			lgr.Logger.Debug("framer context cancelled", slog.Int("position", position))
			return
		}

		if position%stride != 0 {
			err := src.Skip()
			if errors.Is(err, io.EOF) {
				return
			}
			stats.read++
			stats.skipped++

			var decErr *model.FrameDecodeError
			if err != nil && !errors.As(err, &decErr) {
				stats.err = model.WithStack(err)
				return
			}
			continue
		}

		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		stats.read++

		item := frameItem{index: position}
		var decErr *model.FrameDecodeError
		switch {
		case errors.As(err, &decErr):
			item.err = err
		case err != nil:
			stats.err = model.WithStack(err)
			return
		default:
			item.frame = frame
			item.index = frame.Index
			item.reduced = reducer.Reduce(frame)
		}

		select {
		case <-canxCtx.Done():
			lgr.Logger.Debug("framer context cancelled while sending", slog.Int("position", position))
			return
		case out <- item:
		}
	}
}
