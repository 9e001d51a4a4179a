package config

import "time"

const (
	DebounceFrames   = "frames"
	DebounceDuration = "duration"

	ScorerMAD  = "mad"
	ScorerSSIM = "ssim"

	BackendAuto = "auto"
	BackendGoCV = "gocv"
	BackendMPEG = "mpeg"

	FormatJPEG = "jpg"
	FormatPNG  = "png"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetExtractorParameters() ExtractorParameters
	GetOutputFolder(input string) string
	GetRunsFolder() string
	GetVideoExtensions() []string
	GetLogParameters() LogParameters
	GetMetricsFile() string
	GetStorageParameters() StorageParameters
	Validate() error
}

// ExtractorParameters configures one extraction run.
type ExtractorParameters struct {
	Threshold float64
	Scorer    string

	Stride int
	// SampleInterval, when set, replaces Stride with fps*SampleInterval.
	SampleInterval time.Duration

	DebounceUnit     string
	DebounceFrames   int
	DebounceDuration time.Duration
	FlushPending     bool

	ReduceWidth  int
	ReduceHeight int
	Grayscale    bool
	BlurSigma    float64

	Backend     string
	ImageFormat string
	JPEGQuality int
	Overwrite   bool
	Prefetch    int
}

type LogParameters struct {
	Level string
	File  string
}

type StorageParameters struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

func (p StorageParameters) Enabled() bool {
	return p.Endpoint != "" && p.Bucket != ""
}
