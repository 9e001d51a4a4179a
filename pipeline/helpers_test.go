package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"github.com/khaledhikmat/framex-go/model"
)

const (
	levelA = 20
	levelB = 200
)

// synthFrame creates a uniform RGBA image of the given luminance.
func synthFrame(w, h int, lum byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = lum, lum, lum, 255
	}
	return img
}

// levels builds one frame per luminance value. A negative value marks a
// frame that fails to decode.
func levels(lums ...int) []image.Image {
	frames := make([]image.Image, len(lums))
	for i, l := range lums {
		if l < 0 {
			continue
		}
		frames[i] = synthFrame(32, 18, byte(l))
	}
	return frames
}

func repeat(lum, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = lum
	}
	return out
}

func concat(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// sliceSource serves in-memory frames at a fixed frame rate. A nil frame
// reports a decode error at its index.
type sliceSource struct {
	frames []image.Image
	fps    float64
	pos    int

	// onRead, when set, runs before each Read with the index being read.
	onRead func(index int)

	mu     sync.Mutex
	read   []int
	skips  int
	closed bool
}

func newSliceSource(frames []image.Image) *sliceSource {
	return &sliceSource{frames: frames, fps: 1}
}

func (s *sliceSource) Info() model.SourceInfo {
	return model.SourceInfo{
		Backend:    "memory",
		FPS:        s.fps,
		FrameCount: len(s.frames),
		Width:      32,
		Height:     18,
	}
}

func (s *sliceSource) Read() (model.RawFrame, error) {
	if s.pos >= len(s.frames) {
		return model.RawFrame{}, io.EOF
	}
	idx := s.pos
	s.pos++
	if s.onRead != nil {
		s.onRead(idx)
	}

	s.mu.Lock()
	s.read = append(s.read, idx)
	s.mu.Unlock()

	if s.frames[idx] == nil {
		return model.RawFrame{}, &model.FrameDecodeError{Index: idx, Err: errors.New("corrupt frame")}
	}
	return model.RawFrame{
		Image:     s.frames[idx],
		Index:     idx,
		Timestamp: time.Duration(float64(idx) / s.fps * float64(time.Second)),
	}, nil
}

func (s *sliceSource) Skip() error {
	if s.pos >= len(s.frames) {
		return io.EOF
	}
	s.pos++
	s.mu.Lock()
	s.skips++
	s.mu.Unlock()
	return nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func (s *sliceSource) readIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.read...)
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	samples  []model.ScoreSample
	captures []model.CaptureRecord
	progress []model.Progress
}

func (r *recorder) Scored(s model.ScoreSample)       { r.samples = append(r.samples, s) }
func (r *recorder) Captured(rec model.CaptureRecord) { r.captures = append(r.captures, rec) }
func (r *recorder) Progress(p model.Progress)        { r.progress = append(r.progress, p) }

type runConfig struct {
	threshold    float64
	debounce     Debounce
	flushPending bool
	stride       int
	folder       string
	overwrite    bool
}

func testReducer() *Reducer {
	return NewReducer(ReducerOptions{Width: 16, Height: 9, Grayscale: true})
}

func newTestExtractor(cfg runConfig, obs ...Observer) (*Extractor, error) {
	if cfg.threshold == 0 {
		cfg.threshold = 0.3
	}
	writer, err := NewWriter(WriterOptions{
		Folder:    cfg.folder,
		Base:      "talk",
		Format:    "png",
		Overwrite: cfg.overwrite,
	})
	if err != nil {
		return nil, err
	}
	detector := NewDetector(MeanAbsDiff{}, DetectorOptions{
		Threshold:    cfg.threshold,
		Debounce:     cfg.debounce,
		FlushPending: cfg.flushPending,
	})
	return NewExtractor(Options{
		RunID:    "test-run",
		Input:    "talk.mp4",
		Stride:   cfg.stride,
		Prefetch: 2,
	}, testReducer(), detector, writer, obs...), nil
}

func runFrames(cfg runConfig, frames []image.Image, obs ...Observer) (model.RunSummary, error) {
	ext, err := newTestExtractor(cfg, obs...)
	if err != nil {
		return model.RunSummary{}, err
	}
	return ext.Run(context.Background(), newSliceSource(frames))
}

func captureIndices(recs []model.CaptureRecord) []int {
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Index)
	}
	return out
}
