package video

import (
	"image"
	"io"
	"os"
	"time"

	"github.com/gen2brain/mpeg"
	"golang.org/x/image/draw"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/config"
)

// maxEmptyDecodes bounds DecodeVideo calls that return no frame without
// the stream reporting its end.
const maxEmptyDecodes = 64

type mpegSource struct {
	file     *os.File
	mpg      *mpeg.MPEG
	info     model.SourceInfo
	position int
}

func openMPEG(path string) (*mpegSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	mpg, err := mpeg.New(f)
	if err != nil {
		f.Close()
		return nil, xerrors.Errorf("mpeg demux: %w", err)
	}
	mpg.SetAudioEnabled(false)

	return &mpegSource{
		file: f,
		mpg:  mpg,
		info: model.SourceInfo{
			Backend: config.BackendMPEG,
			FPS:     mpg.Framerate(),
			Width:   mpg.Width(),
			Height:  mpg.Height(),
		},
	}, nil
}

func (s *mpegSource) Info() model.SourceInfo {
	return s.info
}

func (s *mpegSource) next() (*mpeg.Frame, int, error) {
	for empty := 0; empty < maxEmptyDecodes; empty++ {
		if frame := s.mpg.DecodeVideo(); frame != nil {
			index := s.position
			s.position++
			return frame, index, nil
		}
		if s.mpg.HasEnded() {
			return nil, s.position, io.EOF
		}
	}
	return nil, s.position, io.EOF
}

func (s *mpegSource) Read() (model.RawFrame, error) {
	frame, index, err := s.next()
	if err != nil {
		return model.RawFrame{}, err
	}

	// The decoder reuses its planes, so the frame is copied out.
	src := frame.YCbCr()
	if src == nil || src.Bounds().Empty() {
		return model.RawFrame{}, model.NewFrameDecodeError(index, xerrors.New("empty picture"))
	}
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	return model.RawFrame{
		Image:     dst,
		Index:     index,
		Timestamp: time.Duration(frame.Time * float64(time.Second)),
	}, nil
}

func (s *mpegSource) Skip() error {
	_, _, err := s.next()
	return err
}

func (s *mpegSource) Close() error {
	return s.file.Close()
}
