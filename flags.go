package main

import (
	"github.com/urfave/cli/v2"

	"github.com/khaledhikmat/framex-go/service/config"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML settings file", EnvVars: []string{"FRAMEX_CONFIG"}},
	&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
	&cli.StringFlag{Name: "log-file", Usage: "write JSON logs to this rotating file instead of stderr"},
	&cli.StringFlag{Name: "metrics-file", Usage: "export Prometheus metrics to this textfile when done"},
	&cli.StringFlag{Name: "runs-folder", Usage: "where run summaries and errors are recorded"},
}

var extractorFlags = []cli.Flag{
	&cli.Float64Flag{Name: "threshold", Aliases: []string{"t"}, Usage: "difference score in (0, 1] that marks a new slide (required)"},
	&cli.StringFlag{Name: "scorer", Usage: "mad or ssim"},
	&cli.IntFlag{Name: "stride", Usage: "score every Nth decoded frame"},
	&cli.DurationFlag{Name: "sample-every", Usage: "score one frame per interval of video time; overrides --stride"},
	&cli.StringFlag{Name: "debounce-unit", Usage: "frames or duration"},
	&cli.IntFlag{Name: "debounce-frames", Usage: "sampled frames a change must persist"},
	&cli.DurationFlag{Name: "debounce-duration", Usage: "video time a change must persist"},
	&cli.BoolFlag{Name: "flush-pending", Usage: "keep an unconfirmed change at the end of the video"},
	&cli.IntFlag{Name: "reduce-width", Usage: "comparison thumbnail width"},
	&cli.IntFlag{Name: "reduce-height", Usage: "comparison thumbnail height"},
	&cli.BoolFlag{Name: "no-grayscale", Usage: "compare in color"},
	&cli.Float64Flag{Name: "blur", Usage: "Gaussian blur sigma before comparison, 0 disables"},
	&cli.StringFlag{Name: "backend", Usage: "auto, gocv or mpeg"},
	&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output folder (default <video dir>/<video name>_slides)"},
	&cli.StringFlag{Name: "format", Usage: "jpg or png"},
	&cli.IntFlag{Name: "quality", Usage: "JPEG quality 1..100"},
	&cli.BoolFlag{Name: "overwrite", Usage: "rewrite captures that already exist"},
	&cli.IntFlag{Name: "prefetch", Usage: "frames decoded ahead of the detector"},
	&cli.StringFlag{Name: "upload-bucket", Usage: "upload captures to this object storage bucket"},
}

// applyFlags overrides settings with the flags given on the command line.
// Unset flags leave file and environment values alone.
func applyFlags(c *cli.Context, s *config.Settings) {
	str := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	num := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	flt := func(name string, dst *float64) {
		if c.IsSet(name) {
			*dst = c.Float64(name)
		}
	}

	str("log-level", &s.LogLevel)
	str("log-file", &s.LogFile)
	str("metrics-file", &s.MetricsFile)
	str("runs-folder", &s.RunsFolder)

	flt("threshold", &s.Threshold)
	str("scorer", &s.Scorer)
	num("stride", &s.Stride)
	if c.IsSet("sample-every") {
		s.SampleInterval = c.Duration("sample-every")
	}
	str("debounce-unit", &s.DebounceUnit)
	num("debounce-frames", &s.DebounceFrames)
	if c.IsSet("debounce-duration") {
		s.DebounceDuration = c.Duration("debounce-duration")
		if !c.IsSet("debounce-unit") {
			s.DebounceUnit = config.DebounceDuration
		}
	}
	if c.IsSet("flush-pending") {
		s.FlushPending = c.Bool("flush-pending")
	}
	num("reduce-width", &s.ReduceWidth)
	num("reduce-height", &s.ReduceHeight)
	if c.IsSet("no-grayscale") {
		s.Grayscale = !c.Bool("no-grayscale")
	}
	flt("blur", &s.BlurSigma)
	str("backend", &s.Backend)
	str("output", &s.OutputFolder)
	str("format", &s.ImageFormat)
	num("quality", &s.JPEGQuality)
	if c.IsSet("overwrite") {
		s.Overwrite = c.Bool("overwrite")
	}
	num("prefetch", &s.Prefetch)
	str("upload-bucket", &s.Storage.Bucket)
}
