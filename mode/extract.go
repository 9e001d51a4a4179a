package mode

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/pipeline"
	"github.com/khaledhikmat/framex-go/service/config"
	"github.com/khaledhikmat/framex-go/service/lgr"
	"github.com/khaledhikmat/framex-go/service/storage"
)

// Extract processes the single video named by args[0].
func Extract(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 1 {
		return &model.ConfigurationError{Field: "input", Reason: "extract takes exactly one video path"}
	}
	if err := svcs.CfgSvc.Validate(); err != nil {
		return err
	}

	console := newConsole(svcs.Out)
	summary, err := extractOne(canxCtx, svcs, args[0], console)
	if summary.RunID != "" {
		console.summary(summary)
	}
	writeMetrics(svcs)
	return err
}

// extractOne runs, uploads and records one video. Open failures come back
// as *model.StreamOpenError with an empty summary.
func extractOne(canxCtx context.Context, svcs ServicesFactory, input string, console *console) (model.RunSummary, error) {
	runID := uuid.New()
	runCtx := lgr.WithRun(canxCtx, runID)
	params := svcs.CfgSvc.GetExtractorParameters()
	misc := map[string]interface{}{
		"runId": runID.String(),
		"input": input,
	}

	src, err := svcs.Opener(input, params.Backend)
	if err != nil {
		lgr.Logger.ErrorContext(runCtx, "cannot open video",
			slog.String("input", input),
			slog.Any("error", err),
		)
		procError(svcs.DataSvc, model.GenError("extract", err, misc, "cannot open %s", input))
		if svcs.Metrics != nil {
			svcs.Metrics.ObserveOpenFailure()
		}
		return model.RunSummary{}, err
	}
	defer src.Close()

	if prior, err := svcs.DataSvc.RetrieveRunSummariesByInput(input); err == nil && len(prior) > 0 {
		last := prior[len(prior)-1]
		lgr.Logger.InfoContext(runCtx, "input was extracted before",
			slog.String("input", input),
			slog.Int("runs", len(prior)),
			slog.String("lastRunId", last.RunID),
			slog.Int("lastCaptures", last.FramesCaptured),
		)
	}

	ext, err := buildExtractor(svcs, params, input, runID.String(), src.Info(), console)
	if err != nil {
		return model.RunSummary{}, err
	}

	summary, runErr := ext.Run(runCtx, src)

	if !summary.Cancelled && svcs.StorageSvc != nil {
		summary.Uploaded = upload(runCtx, svcs, input, summary)
	}

	if svcs.Metrics != nil {
		svcs.Metrics.ObserveRun(summary, runErr)
	}
	procStats(svcs.DataSvc, summary)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		procError(svcs.DataSvc, model.GenError("extract", runErr, misc, "extraction of %s failed", input))
	}

	return summary, runErr
}

func buildExtractor(svcs ServicesFactory, params config.ExtractorParameters, input, runID string, info model.SourceInfo, console *console) (*pipeline.Extractor, error) {
	scorer, err := pipeline.NewScorer(params.Scorer)
	if err != nil {
		return nil, err
	}

	writer, err := pipeline.NewWriter(pipeline.WriterOptions{
		Folder:    svcs.CfgSvc.GetOutputFolder(input),
		Base:      baseName(input),
		Format:    params.ImageFormat,
		Quality:   params.JPEGQuality,
		Overwrite: params.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	debounce := pipeline.Debounce{Frames: params.DebounceFrames}
	if params.DebounceUnit == config.DebounceDuration {
		debounce = pipeline.Debounce{Duration: params.DebounceDuration}
	}
	detector := pipeline.NewDetector(scorer, pipeline.DetectorOptions{
		Threshold:    params.Threshold,
		Debounce:     debounce,
		FlushPending: params.FlushPending,
	})

	reducer := pipeline.NewReducer(pipeline.ReducerOptions{
		Width:     params.ReduceWidth,
		Height:    params.ReduceHeight,
		Grayscale: params.Grayscale,
		BlurSigma: float32(params.BlurSigma),
	})

	stride := params.Stride
	if params.SampleInterval > 0 {
		stride = pipeline.StrideFor(info.FPS, params.SampleInterval)
	}

	observers := []pipeline.Observer{console}
	if svcs.Metrics != nil {
		observers = append(observers, svcs.Metrics)
	}

	return pipeline.NewExtractor(pipeline.Options{
		RunID:    runID,
		Input:    input,
		Stride:   stride,
		Prefetch: params.Prefetch,
	}, reducer, detector, writer, observers...), nil
}

// upload stores every capture and the manifest under <base>/ and returns
// how many captures made it. Failures are recorded, not returned.
func upload(canxCtx context.Context, svcs ServicesFactory, input string, summary model.RunSummary) int {
	base := baseName(input)
	uploaded := 0

	paths := make([]string, 0, len(summary.Captures)+1)
	for _, rec := range summary.Captures {
		paths = append(paths, rec.Path)
	}
	paths = append(paths, filepath.Join(summary.OutputFolder, base+"_captures.json"))

	for i, p := range paths {
		if canxCtx.Err() != nil {
			break
		}
		key := storage.ObjectKey(base, filepath.Base(p))
		loc, err := svcs.StorageSvc.StoreFile(canxCtx, key, p)
		if err != nil {
			lgr.Logger.WarnContext(canxCtx, "upload failed",
				slog.String("path", p),
				slog.Any("error", err),
			)
			procError(svcs.DataSvc, model.GenError("upload", err, map[string]interface{}{
				"runId": summary.RunID,
				"path":  p,
			}, "cannot upload %s", p))
			continue
		}
		lgr.Logger.DebugContext(canxCtx, "uploaded", slog.String("location", loc))
		if i < len(summary.Captures) {
			uploaded++
		}
	}

	return uploaded
}

func writeMetrics(svcs ServicesFactory) {
	path := svcs.CfgSvc.GetMetricsFile()
	if path == "" || svcs.Metrics == nil {
		return
	}
	if err := svcs.Metrics.WriteTextfile(path); err != nil {
		lgr.Logger.Error("failed to write metrics", slog.Any("error", err))
	}
}

func baseName(input string) string {
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}
