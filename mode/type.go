package mode

import (
	"context"
	"io"
	"log/slog"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/pipeline"
	"github.com/khaledhikmat/framex-go/service/config"
	"github.com/khaledhikmat/framex-go/service/data"
	"github.com/khaledhikmat/framex-go/service/lgr"
	"github.com/khaledhikmat/framex-go/service/metrics"
	"github.com/khaledhikmat/framex-go/service/storage"
)

// Opener opens a video with a backend name; see video.Open.
type Opener func(path, backend string) (pipeline.FrameSource, error)

// Prober reads container metadata; see video.ProbeMP4.
type Prober func(path string) (model.ContainerInfo, error)

// ServicesFactory carries everything a mode processor needs. main builds
// it; tests substitute in-memory sources and fakes.
type ServicesFactory struct {
	CfgSvc     config.IService
	DataSvc    data.IService
	StorageSvc storage.IService
	Metrics    *metrics.Recorder
	Opener     Opener
	Prober     Prober
	// Out receives human readable progress and summaries.
	Out io.Writer
}

// Processor runs one command to completion or cancellation.
type Processor func(canxCtx context.Context, svcs ServicesFactory, args []string) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.RunSummary:
		procRunSummary(datasvc, stats)
	case model.BatchStats:
		procBatchStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procRunSummary(datasvc data.IService, summary model.RunSummary) {
	err := datasvc.NewRunSummary(summary)
	if err != nil {
		lgr.Logger.Error(
			"failed to store run summary",
			slog.String("runId", summary.RunID),
			slog.Any("error", err),
		)
	}
}

func procBatchStats(datasvc data.IService, stats model.BatchStats) {
	err := datasvc.NewBatchStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store batch stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
