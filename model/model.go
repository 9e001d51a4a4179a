package model

import (
	"fmt"
	"image"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// RawFrame is a decoded image. Index is the 0-based decode position in the
// stream; frames dropped by the sampling stride still advance it.
type RawFrame struct {
	Image     image.Image
	Index     int
	Timestamp time.Duration
}

// ReducedFrame is the compact comparison form of a RawFrame. Pix holds
// Width*Height*Channels samples, row-major, channels interleaved.
type ReducedFrame struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

func (r ReducedFrame) Empty() bool {
	return len(r.Pix) == 0
}

// ScoreSample is the dissimilarity of a sampled frame against the detector
// reference at the time the frame was observed.
type ScoreSample struct {
	Index     int           `json:"index"`
	Timestamp time.Duration `json:"timestamp"`
	Score     float64       `json:"score"`
}

// ChangeEvent carries the frame the detector accepted as a new reference.
type ChangeEvent struct {
	Frame   RawFrame
	Reduced ReducedFrame
	Score   float64
}

type CaptureRecord struct {
	Sequence    int           `json:"sequence"`
	Index       int           `json:"index"`
	Timestamp   time.Duration `json:"-"`
	TimestampMs int64         `json:"timestampMs"`
	Score       float64       `json:"score"`
	File        string        `json:"file"`
	Path        string        `json:"-"`
	Reused      bool          `json:"-"`
}

// WriteFailure is a capture that could not be written. Sequence 0 marks
// the manifest.
type WriteFailure struct {
	Sequence int    `json:"sequence"`
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

type SourceInfo struct {
	Backend    string  `json:"backend"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frameCount"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// ContainerInfo is what the container boxes say about the first video
// track, independent of any decoder.
type ContainerInfo struct {
	TrackID    uint32        `json:"trackId"`
	Timescale  uint32        `json:"timescale"`
	Duration   time.Duration `json:"duration"`
	FrameCount int           `json:"frameCount"`
	FPS        float64       `json:"fps"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
}

type Progress struct {
	RunID          string `json:"runId"`
	Input          string `json:"input"`
	FramesRead     int    `json:"framesRead"`
	FramesTotal    int    `json:"framesTotal"`
	FramesScanned  int    `json:"framesScanned"`
	FramesCaptured int    `json:"framesCaptured"`
	DecodeErrors   int    `json:"decodeErrors"`
	WriteErrors    int    `json:"writeErrors"`
}

type RunSummary struct {
	RunID          string          `json:"runId"`
	Input          string          `json:"input"`
	OutputFolder   string          `json:"outputFolder"`
	Source         SourceInfo      `json:"source"`
	Stride         int             `json:"stride"`
	StartedAt      time.Time       `json:"startedAt"`
	Duration       time.Duration   `json:"duration"`
	FramesRead     int             `json:"framesRead"`
	FramesTotal    int             `json:"framesTotal"`
	FramesScanned  int             `json:"framesScanned"`
	FramesSkipped  int             `json:"framesSkipped"`
	FramesCaptured int             `json:"framesCaptured"`
	FailedFrames   []int           `json:"failedFrames"`
	WriteFailures  []WriteFailure  `json:"writeFailures"`
	Captures       []CaptureRecord `json:"captures"`
	Uploaded       int             `json:"uploaded"`
	Cancelled      bool            `json:"cancelled"`
	Timestamp      int64           `json:"timestamp"`
}

func (s RunSummary) Progress() Progress {
	return Progress{
		RunID:          s.RunID,
		Input:          s.Input,
		FramesRead:     s.FramesRead,
		FramesTotal:    s.FramesTotal,
		FramesScanned:  s.FramesScanned,
		FramesCaptured: s.FramesCaptured,
		DecodeErrors:   len(s.FailedFrames),
		WriteErrors:    len(s.WriteFailures),
	}
}

type BatchStats struct {
	Folder    string `json:"folder"`
	Videos    int    `json:"videos"`
	Failed    int    `json:"failed"`
	Captures  int    `json:"captures"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
