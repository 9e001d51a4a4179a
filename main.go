package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/mode"
	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/config"
	"github.com/khaledhikmat/framex-go/service/data"
	"github.com/khaledhikmat/framex-go/service/lgr"
	"github.com/khaledhikmat/framex-go/service/metrics"
	"github.com/khaledhikmat/framex-go/service/storage"
	"github.com/khaledhikmat/framex-go/video"
)

func main() {
	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lgr.Logger.Warn("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	app := &cli.App{
		Name:  "framex",
		Usage: "extract the visually distinct frames (slides) of a video",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "extract slides from one video",
				ArgsUsage: "<video>",
				Flags:     extractorFlags,
				Action:    modeAction(mode.Extract),
			},
			{
				Name:      "batch",
				Usage:     "extract slides from every video in a folder",
				ArgsUsage: "<folder>",
				Flags:     extractorFlags,
				Action:    modeAction(mode.Batch),
			},
			{
				Name:      "probe",
				Usage:     "print what the decoder and the container report about a video",
				ArgsUsage: "<video>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "backend", Usage: "auto, gocv or mpeg"}},
				Action:    modeAction(mode.Probe),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		lgr.Logger.Error("framex failed", slog.Any("error", err))
		if model.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func modeAction(modeProc mode.Processor) cli.ActionFunc {
	return func(c *cli.Context) error {
		settings, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		applyFlags(c, &settings)

		lgr.Configure(lgr.Options{
			Level: settings.LogLevel,
			File:  settings.LogFile,
		})

		cfgSvc := config.New(settings)
		svcs, err := newServices(cfgSvc)
		if err != nil {
			return err
		}

		return runMode(cfgSvc, svcs, modeProc, c.Args().Slice())
	}
}

func newServices(cfgSvc config.IService) (mode.ServicesFactory, error) {
	svcs := mode.ServicesFactory{
		CfgSvc:  cfgSvc,
		DataSvc: data.NewFilesDB(cfgSvc),
		Metrics: metrics.NewRecorder(),
		Opener:  video.Open,
		Prober:  video.ProbeMP4,
		Out:     os.Stdout,
	}

	if params := cfgSvc.GetStorageParameters(); params.Enabled() {
		storageSvc, err := storage.NewMinio(params)
		if err != nil {
			return svcs, err
		}
		svcs.StorageSvc = storageSvc
	}

	return svcs, nil
}

// runMode runs the processor until it finishes or a signal arrives. After
// a signal the processor gets the configured shutdown time to record its
// partial results.
func runMode(cfgSvc config.IService, svcs mode.ServicesFactory, modeProc mode.Processor, args []string) error {
	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	modeProcResult := make(chan error, 1)
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, args)
	}()

	select {
	case err := <-modeProcResult:
		return err

	case sig := <-sigChan:
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}

	waitOnShutdown := time.Duration(cfgSvc.GetModeMaxShutdownTime()) * time.Second
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case err := <-modeProcResult:
		return err

	case <-timer.C:
		lgr.Logger.Info(
			"shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)
		return context.Canceled
	}
}
