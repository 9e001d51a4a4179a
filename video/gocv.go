package video

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/pipeline"
	"github.com/khaledhikmat/framex-go/service/config"
	"github.com/khaledhikmat/framex-go/service/lgr"
)

type gocvSource struct {
	capture *gocv.VideoCapture
	img     gocv.Mat
	info    model.SourceInfo
	cursor  pipeline.ReadCursor
}

func openGoCV(path string) (*gocvSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, xerrors.Errorf("opencv could not open %s", path)
	}

	info := model.SourceInfo{
		Backend:    config.BackendGoCV,
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.FrameCount < 0 {
		info.FrameCount = 0
	}

	// Some containers report neither; the MP4 boxes usually know.
	if (info.FPS <= 0 || info.FrameCount == 0) && isMP4(path) {
		if probe, err := ProbeMP4(path); err == nil {
			if info.FPS <= 0 {
				info.FPS = probe.FPS
			}
			if info.FrameCount == 0 {
				info.FrameCount = probe.FrameCount
			}
		} else {
			lgr.Logger.Debug("mp4 probe failed", slog.String("path", path), slog.Any("error", err))
		}
	}

	return &gocvSource{
		capture: capture,
		img:     gocv.NewMat(),
		info:    info,
		cursor:  pipeline.ReadCursor{MaxMisses: MaxConsecutiveDecodeErrors},
	}, nil
}

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}

func (s *gocvSource) Info() model.SourceInfo {
	return s.info
}

// grab makes s.img the current frame. OpenCV reports a corrupt frame and
// the end of the stream the same way, and its frame count is only an
// estimate, so the cursor decides which failed reads were decode errors.
func (s *gocvSource) grab() (int, error) {
	return s.cursor.Advance(func() bool {
		return s.capture.Read(&s.img) && !s.img.Empty()
	})
}

func (s *gocvSource) Read() (model.RawFrame, error) {
	index, err := s.grab()
	if err != nil {
		return model.RawFrame{}, err
	}

	img, err := s.img.ToImage()
	if err != nil {
		return model.RawFrame{}, model.NewFrameDecodeError(index, err)
	}

	return model.RawFrame{
		Image:     img,
		Index:     index,
		Timestamp: frameTime(index, s.info.FPS),
	}, nil
}

func (s *gocvSource) Skip() error {
	_, err := s.grab()
	return err
}

func (s *gocvSource) Close() error {
	s.img.Close() // Crucial to close the image to avoid memory leaks
	return s.capture.Close()
}

// frameTime is the presentation time of frame index at fps, assuming the
// default rate when fps is unknown.
func frameTime(index int, fps float64) time.Duration {
	if fps <= 0 {
		fps = pipeline.DefaultFPS
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}
