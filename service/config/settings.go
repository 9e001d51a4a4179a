package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
)

// Settings is the full configuration surface. Values are layered:
// Defaults, then the YAML file, then FRAMEX_* environment variables, then
// command-line flags applied by the caller.
type Settings struct {
	Threshold      float64       `yaml:"threshold" env:"THRESHOLD"`
	Scorer         string        `yaml:"scorer" env:"SCORER"`
	Stride         int           `yaml:"stride" env:"STRIDE"`
	SampleInterval time.Duration `yaml:"sample_every" env:"SAMPLE_EVERY"`

	DebounceUnit     string        `yaml:"debounce_unit" env:"DEBOUNCE_UNIT"`
	DebounceFrames   int           `yaml:"debounce_frames" env:"DEBOUNCE_FRAMES"`
	DebounceDuration time.Duration `yaml:"debounce_duration" env:"DEBOUNCE_DURATION"`
	FlushPending     bool          `yaml:"flush_pending" env:"FLUSH_PENDING"`

	ReduceWidth  int     `yaml:"reduce_width" env:"REDUCE_WIDTH"`
	ReduceHeight int     `yaml:"reduce_height" env:"REDUCE_HEIGHT"`
	Grayscale    bool    `yaml:"grayscale" env:"GRAYSCALE"`
	BlurSigma    float64 `yaml:"blur" env:"BLUR"`

	Backend      string   `yaml:"backend" env:"BACKEND"`
	OutputFolder string   `yaml:"output" env:"OUTPUT"`
	ImageFormat  string   `yaml:"format" env:"FORMAT"`
	JPEGQuality  int      `yaml:"quality" env:"QUALITY"`
	Overwrite    bool     `yaml:"overwrite" env:"OVERWRITE"`
	Prefetch     int      `yaml:"prefetch" env:"PREFETCH"`
	Extensions   []string `yaml:"extensions" env:"EXTENSIONS" envSeparator:","`

	RunsFolder      string `yaml:"runs_folder" env:"RUNS_FOLDER"`
	LogLevel        string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFile         string `yaml:"log_file" env:"LOG_FILE"`
	MetricsFile     string `yaml:"metrics_file" env:"METRICS_FILE"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	Storage StorageSettings `yaml:"storage" envPrefix:"MINIO_"`
}

type StorageSettings struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
}

const EnvPrefix = "FRAMEX_"

// Defaults returns Settings with every optional value filled in. Threshold
// has no default: it must be chosen by the caller.
func Defaults() Settings {
	return Settings{
		Scorer:           ScorerMAD,
		Stride:           1,
		DebounceUnit:     DebounceFrames,
		DebounceFrames:   1,
		DebounceDuration: time.Second,
		ReduceWidth:      64,
		ReduceHeight:     36,
		Grayscale:        true,
		BlurSigma:        1.0,
		Backend:          BackendAuto,
		ImageFormat:      FormatJPEG,
		JPEGQuality:      95,
		Prefetch:         8,
		Extensions:       []string{".mp4", ".mov", ".mkv", ".avi", ".wmv", ".mpg", ".mpeg"},
		RunsFolder:       "./runs",
		LogLevel:         "info",
		ShutdownTimeout:  5,
	}
}

// Load builds Settings from defaults, the optional YAML file at path and
// the environment.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, xerrors.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, xerrors.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return s, xerrors.Errorf("parse environment: %w", err)
	}

	return s, nil
}

type settingsService struct {
	s Settings
}

func New(s Settings) IService {
	return &settingsService{s: s}
}

func (svc *settingsService) GetModeMaxShutdownTime() int {
	return svc.s.ShutdownTimeout
}

func (svc *settingsService) GetExtractorParameters() ExtractorParameters {
	return ExtractorParameters{
		Threshold:        svc.s.Threshold,
		Scorer:           svc.s.Scorer,
		Stride:           svc.s.Stride,
		SampleInterval:   svc.s.SampleInterval,
		DebounceUnit:     svc.s.DebounceUnit,
		DebounceFrames:   svc.s.DebounceFrames,
		DebounceDuration: svc.s.DebounceDuration,
		FlushPending:     svc.s.FlushPending,
		ReduceWidth:      svc.s.ReduceWidth,
		ReduceHeight:     svc.s.ReduceHeight,
		Grayscale:        svc.s.Grayscale,
		BlurSigma:        svc.s.BlurSigma,
		Backend:          svc.s.Backend,
		ImageFormat:      svc.s.ImageFormat,
		JPEGQuality:      svc.s.JPEGQuality,
		Overwrite:        svc.s.Overwrite,
		Prefetch:         svc.s.Prefetch,
	}
}

// GetOutputFolder returns the configured output folder, or
// <input dir>/<input base>_slides when none is set.
func (svc *settingsService) GetOutputFolder(input string) string {
	if svc.s.OutputFolder != "" {
		return svc.s.OutputFolder
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+"_slides")
}

func (svc *settingsService) GetRunsFolder() string {
	return svc.s.RunsFolder
}

func (svc *settingsService) GetVideoExtensions() []string {
	exts := make([]string, 0, len(svc.s.Extensions))
	for _, e := range svc.s.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

func (svc *settingsService) GetLogParameters() LogParameters {
	return LogParameters{
		Level: svc.s.LogLevel,
		File:  svc.s.LogFile,
	}
}

func (svc *settingsService) GetMetricsFile() string {
	return svc.s.MetricsFile
}

func (svc *settingsService) GetStorageParameters() StorageParameters {
	return StorageParameters(svc.s.Storage)
}

// Validate reports every invalid setting as a *model.ConfigurationError,
// joined into one error.
func (svc *settingsService) Validate() error {
	s := svc.s
	var errs []error
	bad := func(field, reason string) {
		errs = append(errs, &model.ConfigurationError{Field: field, Reason: reason})
	}

	if s.Threshold <= 0 {
		bad("threshold", "must be positive (it is required)")
	} else if s.Threshold > 1 {
		bad("threshold", "scores are normalized to [0, 1]; must be at most 1")
	}
	if !slices.Contains([]string{ScorerMAD, ScorerSSIM}, s.Scorer) {
		bad("scorer", "must be one of mad, ssim")
	}
	if s.Stride < 1 {
		bad("stride", "must be at least 1")
	}
	if s.SampleInterval < 0 {
		bad("sample_every", "must not be negative")
	}
	switch s.DebounceUnit {
	case DebounceFrames:
		if s.DebounceFrames < 1 {
			bad("debounce_frames", "must be at least 1")
		}
	case DebounceDuration:
		if s.DebounceDuration <= 0 {
			bad("debounce_duration", "must be positive")
		}
	default:
		bad("debounce_unit", "must be one of frames, duration")
	}
	if s.ReduceWidth < 1 || s.ReduceHeight < 1 {
		bad("reduce_size", "width and height must be at least 1")
	}
	if s.BlurSigma < 0 {
		bad("blur", "must not be negative")
	}
	if !slices.Contains([]string{BackendAuto, BackendGoCV, BackendMPEG}, s.Backend) {
		bad("backend", "must be one of auto, gocv, mpeg")
	}
	if !slices.Contains([]string{FormatJPEG, FormatPNG}, s.ImageFormat) {
		bad("format", "must be one of jpg, png")
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		bad("quality", "must be within 1..100")
	}
	if s.Prefetch < 1 {
		bad("prefetch", "must be at least 1")
	}

	return errors.Join(errs...)
}
