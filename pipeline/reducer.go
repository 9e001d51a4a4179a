package pipeline

import (
	"image"

	"github.com/disintegration/gift"

	"github.com/khaledhikmat/framex-go/model"
)

type ReducerOptions struct {
	Width     int
	Height    int
	Grayscale bool
	// BlurSigma is the Gaussian blur applied after resizing. 0 disables it.
	BlurSigma float32
}

// Reducer turns raw frames into small comparison thumbnails. Reduce is a
// pure function of the frame image, so one Reducer may serve any number of
// goroutines.
type Reducer struct {
	opts ReducerOptions
	g    *gift.GIFT
}

func NewReducer(opts ReducerOptions) *Reducer {
	filters := []gift.Filter{
		gift.Resize(opts.Width, opts.Height, gift.BoxResampling),
	}
	if opts.Grayscale {
		filters = append(filters, gift.Grayscale())
	}
	if opts.BlurSigma > 0 {
		filters = append(filters, gift.GaussianBlur(opts.BlurSigma))
	}

	return &Reducer{
		opts: opts,
		g:    gift.New(filters...),
	}
}

func (r *Reducer) Reduce(frame model.RawFrame) model.ReducedFrame {
	if frame.Image == nil || frame.Image.Bounds().Empty() {
		return model.ReducedFrame{}
	}

	bounds := r.g.Bounds(frame.Image.Bounds())
	w, h := bounds.Dx(), bounds.Dy()

	if r.opts.Grayscale {
		dst := image.NewGray(bounds)
		r.g.Draw(dst, frame.Image)

		pix := make([]uint8, 0, w*h)
		for y := 0; y < h; y++ {
			off := dst.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			pix = append(pix, dst.Pix[off:off+w]...)
		}
		return model.ReducedFrame{Width: w, Height: h, Channels: 1, Pix: pix}
	}

	dst := image.NewNRGBA(bounds)
	r.g.Draw(dst, frame.Image)

	pix := make([]uint8, 0, w*h*3)
	for y := 0; y < h; y++ {
		off := dst.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := dst.Pix[off : off+w*4]
		for x := 0; x < w; x++ {
			pix = append(pix, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return model.ReducedFrame{Width: w, Height: h, Channels: 3, Pix: pix}
}
