package mode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/lgr"
)

// Batch extracts every video in the folder args[0], in name order. A video
// that cannot be opened or fails mid-run is reported and skipped.
func Batch(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 1 {
		return &model.ConfigurationError{Field: "input", Reason: "batch takes exactly one folder"}
	}
	if err := svcs.CfgSvc.Validate(); err != nil {
		return err
	}
	folder := args[0]

	videos, err := listVideos(folder, svcs.CfgSvc.GetVideoExtensions())
	if err != nil {
		return err
	}

	startTime := time.Now()
	stats := model.BatchStats{Folder: folder}
	console := newConsole(svcs.Out)

	lgr.Logger.Info("batch starting....",
		slog.String("folder", folder),
		slog.Int("videos", len(videos)),
	)

	for _, input := range videos {
		if canxCtx.Err() != nil {
			break
		}

		stats.Videos++
		summary, err := extractOne(canxCtx, svcs, input, console)
		if summary.RunID != "" {
			console.summary(summary)
		}
		stats.Captures += summary.FramesCaptured

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
		case model.IsFatal(err):
			stats.Failed++
			console.warn.Fprintf(console.w, "%s: skipped: %v\n", input, err)
		default:
			stats.Failed++
			lgr.Logger.Error("video failed",
				slog.String("input", input),
				slog.Any("error", err),
			)
		}
	}

	stats.Uptime = int64(time.Since(startTime).Seconds())
	procStats(svcs.DataSvc, stats)
	console.batchSummary(stats)
	writeMetrics(svcs)

	return canxCtx.Err()
}

// listVideos returns the files in folder with one of exts, sorted by name.
func listVideos(folder string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, model.NewStreamOpenError(folder, xerrors.Errorf("read folder: %w", err))
	}

	var videos []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			videos = append(videos, filepath.Join(folder, e.Name()))
		}
	}
	return videos, nil
}
