package pipeline

import (
	"bytes"

	"github.com/khaledhikmat/framex-go/model"
)

// Scorer measures how different two reduced frames are. Scores are in
// [0, 1], 0 exactly when the frames are pixel-identical, and symmetric.
// Frames of different shapes score 1.
type Scorer interface {
	Name() string
	Score(a, b model.ReducedFrame) float64
}

func NewScorer(name string) (Scorer, error) {
	switch name {
	case "", "mad":
		return MeanAbsDiff{}, nil
	case "ssim":
		return SSIM{Block: 8}, nil
	default:
		return nil, &model.ConfigurationError{Field: "scorer", Reason: "unknown scorer " + name}
	}
}

func sameShape(a, b model.ReducedFrame) bool {
	return a.Width == b.Width &&
		a.Height == b.Height &&
		a.Channels == b.Channels &&
		len(a.Pix) == len(b.Pix)
}

// MeanAbsDiff is the mean absolute sample difference divided by 255.
type MeanAbsDiff struct{}

func (MeanAbsDiff) Name() string {
	return "mad"
}

func (MeanAbsDiff) Score(a, b model.ReducedFrame) float64 {
	if !sameShape(a, b) {
		return 1
	}
	if len(a.Pix) == 0 {
		return 0
	}

	var sum uint64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / (float64(len(a.Pix)) * 255)
}

// SSIM scores 1 - mean structural similarity computed over non-overlapping
// Block x Block windows of each channel, clamped to [0, 1].
type SSIM struct {
	Block int
}

const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

func (SSIM) Name() string {
	return "ssim"
}

func (s SSIM) Score(a, b model.ReducedFrame) float64 {
	if !sameShape(a, b) {
		return 1
	}
	if bytes.Equal(a.Pix, b.Pix) {
		return 0
	}

	block := s.Block
	if block <= 0 {
		block = 8
	}

	var total float64
	var windows int
	for c := 0; c < a.Channels; c++ {
		for y0 := 0; y0 < a.Height; y0 += block {
			for x0 := 0; x0 < a.Width; x0 += block {
				x1 := min(x0+block, a.Width)
				y1 := min(y0+block, a.Height)
				total += windowSSIM(a, b, c, x0, y0, x1, y1)
				windows++
			}
		}
	}

	score := 1 - total/float64(windows)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// windowSSIM keeps every product in a and b symmetric so that swapping
// the arguments yields the same float result.
func windowSSIM(a, b model.ReducedFrame, c, x0, y0, x1, y1 int) float64 {
	n := float64((x1 - x0) * (y1 - y0))
	var sumA, sumB float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := (y*a.Width+x)*a.Channels + c
			sumA += float64(a.Pix[i])
			sumB += float64(b.Pix[i])
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := (y*a.Width+x)*a.Channels + c
			da := float64(a.Pix[i]) - meanA
			db := float64(b.Pix[i]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*(meanA*meanB) + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
