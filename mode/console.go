package mode

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/khaledhikmat/framex-go/model"
)

const progressEvery = 500 * time.Millisecond

// console is the human facing observer. On a terminal it redraws a
// progress line and colors its output; otherwise it prints one line per
// capture.
type console struct {
	w           io.Writer
	interactive bool

	mu       sync.Mutex
	lastDraw time.Time
	drawn    bool

	ok   *color.Color
	warn *color.Color
	dim  *color.Color
}

func newConsole(w io.Writer) *console {
	if w == nil {
		w = io.Discard
	}

	interactive := false
	if f, ok := w.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	c := &console{
		w:           w,
		interactive: interactive,
		ok:          color.New(color.FgGreen),
		warn:        color.New(color.FgYellow),
		dim:         color.New(color.Faint),
	}
	if !interactive {
		c.ok.DisableColor()
		c.warn.DisableColor()
		c.dim.DisableColor()
	}
	return c
}

func (c *console) Scored(model.ScoreSample) {}

func (c *console) Captured(rec model.CaptureRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLine()
	note := ""
	if rec.Reused {
		note = c.dim.Sprint(" (exists)")
	}
	c.ok.Fprintf(c.w, "slide %3d", rec.Sequence)
	fmt.Fprintf(c.w, "  frame %-7d %s  score %.3f  %s%s\n",
		rec.Index, clock(rec.Timestamp), rec.Score, rec.File, note)
}

func (c *console) Progress(p model.Progress) {
	if !c.interactive {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastDraw) < progressEvery {
		return
	}
	c.lastDraw = time.Now()

	total := "?"
	if p.FramesTotal > 0 {
		total = fmt.Sprintf("%d (%.0f%%)", p.FramesTotal, 100*float64(p.FramesRead)/float64(p.FramesTotal))
	}
	fmt.Fprintf(c.w, "\r%s frames %d/%s  scanned %d  slides %d  errors %d ",
		c.dim.Sprint(p.Input), p.FramesRead, total, p.FramesScanned, p.FramesCaptured, p.DecodeErrors+p.WriteErrors)
	c.drawn = true
}

func (c *console) clearLine() {
	if c.drawn {
		fmt.Fprint(c.w, "\r\033[K")
		c.drawn = false
	}
}

func (c *console) summary(s model.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLine()

	fmt.Fprintf(c.w, "%s: %d slides from %d frames (%d scanned, stride %d) in %s -> %s\n",
		s.Input, s.FramesCaptured, s.FramesRead, s.FramesScanned, s.Stride,
		s.Duration.Round(time.Millisecond), s.OutputFolder)
	if n := len(s.FailedFrames); n > 0 {
		c.warn.Fprintf(c.w, "  %d frames could not be decoded\n", n)
	}
	for _, wf := range s.WriteFailures {
		if wf.Sequence == 0 {
			c.warn.Fprintf(c.w, "  manifest not written: %s\n", wf.Error)
			continue
		}
		c.warn.Fprintf(c.w, "  slide %d (frame %d) not written: %s\n", wf.Sequence, wf.Index, wf.Error)
	}
	if s.Uploaded > 0 {
		fmt.Fprintf(c.w, "  %d slides uploaded\n", s.Uploaded)
	}
	if s.Cancelled {
		c.warn.Fprintln(c.w, "  cancelled: partial results kept")
	}
}

func (c *console) batchSummary(stats model.BatchStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLine()

	c.ok.Fprintf(c.w, "Extracted %d slides from %d videos", stats.Captures, stats.Videos-stats.Failed)
	if stats.Failed > 0 {
		c.warn.Fprintf(c.w, " (%d could not be processed)", stats.Failed)
	}
	fmt.Fprintln(c.w)
}

func clock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
