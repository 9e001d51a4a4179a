package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/lgr"
)

// DefaultFPS is assumed when a source does not report its frame rate.
const DefaultFPS = 25.0

type Options struct {
	RunID string
	Input string
	// Stride scores every Stride-th decoded frame (index % Stride == 0).
	Stride int
	// Prefetch bounds how many reduced frames the decoder may run ahead.
	Prefetch int
}

// StrideFor converts a sampling interval to a frame stride at the given
// frame rate. A zero interval yields 1.
func StrideFor(fps float64, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = DefaultFPS
	}
	stride := int(math.Round(fps * interval.Seconds()))
	if stride < 1 {
		return 1
	}
	return stride
}

// Extractor runs one video through reduce, score, detect and write.
type Extractor struct {
	opts     Options
	reducer  *Reducer
	detector *Detector
	writer   *Writer
	obs      observers
}

func NewExtractor(opts Options, reducer *Reducer, detector *Detector, writer *Writer, obs ...Observer) *Extractor {
	if opts.Stride < 1 {
		opts.Stride = 1
	}
	if opts.Prefetch < 1 {
		opts.Prefetch = 8
	}
	return &Extractor{
		opts:     opts,
		reducer:  reducer,
		detector: detector,
		writer:   writer,
		obs:      observers(obs),
	}
}

// Run consumes src until it ends, fails or ctx is cancelled. Decode and
// write errors are recorded in the summary and do not stop the run. On
// cancellation the captures written so far are kept, the manifest is still
// written and ctx.Err() is returned with the partial summary.
func (e *Extractor) Run(canxCtx context.Context, src FrameSource) (model.RunSummary, error) {
	startedAt := time.Now()
	info := src.Info()
	summary := model.RunSummary{
		RunID:         e.opts.RunID,
		Input:         e.opts.Input,
		OutputFolder:  e.writer.Folder(),
		Source:        info,
		Stride:        e.opts.Stride,
		StartedAt:     startedAt,
		FramesTotal:   info.FrameCount,
		FailedFrames:  []int{},
		WriteFailures: []model.WriteFailure{},
		Captures:      []model.CaptureRecord{},
	}

	lgr.Logger.InfoContext(canxCtx, "extractor starting....",
		slog.String("input", e.opts.Input),
		slog.String("backend", info.Backend),
		slog.Float64("fps", info.FPS),
		slog.Int("frames", info.FrameCount),
		slog.Int("stride", e.opts.Stride),
		slog.String("output", e.writer.Folder()),
	)

	// Producer-owned cancellation so that an early return here always
	// releases the framer.
	prodCtx, cancel := context.WithCancel(canxCtx)
	defer cancel()

	items := make(chan frameItem, e.opts.Prefetch)
	stats := &framerStats{}
	go framer(prodCtx, src, e.opts.Stride, e.reducer, items, stats)

	for item := range items {
		if canxCtx.Err() != nil {
			break
		}
		summary.FramesRead = item.index + 1

		if item.err != nil {
			summary.FailedFrames = append(summary.FailedFrames, item.index)
			lgr.Logger.WarnContext(canxCtx, "frame decode failed, skipping",
				slog.Int("index", item.index),
				slog.Any("error", item.err),
			)
			e.obs.progress(summary.Progress())
			continue
		}

		summary.FramesScanned++
		sample, ev := e.detector.Feed(item.frame, item.reduced)
		e.obs.scored(sample)
		if ev != nil {
			e.capture(canxCtx, &summary, ev)
		}
		e.obs.progress(summary.Progress())
	}

	// Drain so the framer can observe cancellation and close the channel.
	cancel()
	for range items {
	}

	summary.FramesRead = stats.read
	summary.FramesSkipped = stats.skipped

	if canxCtx.Err() != nil {
		summary.Cancelled = true
	} else if ev := e.detector.Flush(); ev != nil {
		e.capture(canxCtx, &summary, ev)
	}

	if err := e.writer.WriteManifest(summary.Captures); err != nil {
		summary.WriteFailures = append(summary.WriteFailures, model.WriteFailure{
			Index: -1,
			Path:  e.writer.ManifestPath(),
			Error: err.Error(),
		})
		lgr.Logger.ErrorContext(canxCtx, "manifest write failed",
			slog.String("path", e.writer.ManifestPath()),
			slog.Any("error", err),
		)
	}

	summary.Duration = time.Since(startedAt)
	summary.Timestamp = time.Now().Unix()
	e.obs.progress(summary.Progress())

	lgr.Logger.InfoContext(canxCtx, "extractor finished",
		slog.String("input", e.opts.Input),
		slog.Int("framesRead", summary.FramesRead),
		slog.Int("framesScanned", summary.FramesScanned),
		slog.Int("captures", summary.FramesCaptured),
		slog.Int("decodeErrors", len(summary.FailedFrames)),
		slog.Int("writeErrors", len(summary.WriteFailures)),
		slog.Bool("cancelled", summary.Cancelled),
		slog.Duration("duration", summary.Duration),
	)

	switch {
	case summary.Cancelled:
		return summary, canxCtx.Err()
	case stats.err != nil:
		return summary, xerrors.Errorf("reading %s after frame %d: %w", e.opts.Input, stats.read, stats.err)
	}
	return summary, nil
}

func (e *Extractor) capture(canxCtx context.Context, summary *model.RunSummary, ev *model.ChangeEvent) {
	rec, err := e.writer.Write(*ev)
	if err != nil {
		summary.WriteFailures = append(summary.WriteFailures, model.WriteFailure{
			Sequence: rec.Sequence,
			Index:    rec.Index,
			Path:     rec.Path,
			Error:    err.Error(),
		})
		lgr.Logger.ErrorContext(canxCtx, "capture write failed",
			slog.Int("sequence", rec.Sequence),
			slog.Int("index", rec.Index),
			slog.Any("error", err),
		)
		return
	}

	summary.Captures = append(summary.Captures, rec)
	summary.FramesCaptured++
	lgr.Logger.DebugContext(canxCtx, "frame captured",
		slog.Int("sequence", rec.Sequence),
		slog.Int("index", rec.Index),
		slog.Duration("timestamp", rec.Timestamp),
		slog.Float64("score", rec.Score),
		slog.String("file", rec.File),
		slog.Bool("reused", rec.Reused),
	)
	e.obs.captured(rec)
}
