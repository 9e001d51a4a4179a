package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
)

// Recorder turns extraction events into Prometheus metrics on a private
// registry. It is an extraction observer and may be shared by the runs of
// a batch.
type Recorder struct {
	reg *prometheus.Registry

	FramesScanned   prometheus.Counter
	FramesCaptured  prometheus.Counter
	DecodeErrors    prometheus.Counter
	WriteErrors     prometheus.Counter
	Scores          prometheus.Histogram
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RunProgress     prometheus.Gauge
	CapturesPerRun  prometheus.Histogram
	UploadedCapture prometheus.Counter
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		FramesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "framex_frames_scanned_total",
			Help: "Sampled frames scored against the reference",
		}),
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "framex_frames_captured_total",
			Help: "Frames written as captures",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "framex_decode_errors_total",
			Help: "Frames that failed to decode",
		}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "framex_write_errors_total",
			Help: "Captures that could not be written",
		}),
		Scores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framex_frame_score",
			Help:    "Difference score of sampled frames against the reference",
			Buckets: prometheus.LinearBuckets(0.05, 0.05, 20),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_runs_total",
			Help: "Extraction runs by outcome",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framex_run_duration_seconds",
			Help:    "Wall time of an extraction run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		RunProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "framex_run_progress_ratio",
			Help: "Frames read over frames reported by the source for the current run",
		}),
		CapturesPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framex_run_captures",
			Help:    "Captures per extraction run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		UploadedCapture: factory.NewCounter(prometheus.CounterOpts{
			Name: "framex_captures_uploaded_total",
			Help: "Captures uploaded to object storage",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

func (r *Recorder) Scored(sample model.ScoreSample) {
	r.FramesScanned.Inc()
	r.Scores.Observe(sample.Score)
}

func (r *Recorder) Captured(_ model.CaptureRecord) {
	r.FramesCaptured.Inc()
}

func (r *Recorder) Progress(p model.Progress) {
	if p.FramesTotal <= 0 {
		return
	}
	ratio := float64(p.FramesRead) / float64(p.FramesTotal)
	if ratio > 1 {
		ratio = 1
	}
	r.RunProgress.Set(ratio)
}

// ObserveRun records the outcome of a finished run. err is the error Run
// returned, if any.
func (r *Recorder) ObserveRun(summary model.RunSummary, err error) {
	status := "ok"
	switch {
	case summary.Cancelled:
		status = "cancelled"
	case err != nil:
		status = "failed"
	}
	r.RunsTotal.WithLabelValues(status).Inc()
	r.DecodeErrors.Add(float64(len(summary.FailedFrames)))
	r.WriteErrors.Add(float64(len(summary.WriteFailures)))
	r.UploadedCapture.Add(float64(summary.Uploaded))
	r.RunDuration.Observe(summary.Duration.Seconds())
	r.CapturesPerRun.Observe(float64(summary.FramesCaptured))
}

// ObserveOpenFailure counts a run that never started because its input
// could not be opened.
func (r *Recorder) ObserveOpenFailure() {
	r.RunsTotal.WithLabelValues("open_failed").Inc()
}

// WriteTextfile exports the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return xerrors.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
