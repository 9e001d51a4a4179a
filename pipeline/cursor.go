package pipeline

import (
	"errors"
	"io"

	"github.com/khaledhikmat/framex-go/model"
)

var errReadFailed = errors.New("decoder read failed")

// ReadCursor numbers the reads of a decoder that reports a corrupt frame
// and the end of the stream the same way, as OpenCV does. A failed read is
// held until a later read succeeds, which proves the stream went on past
// it. When MaxMisses reads in a row fail the stream has ended and the held
// failures are dropped, so an overestimated frame count never turns into
// decode errors.
type ReadCursor struct {
	MaxMisses int

	next      int
	failed    []int
	held      bool
	heldIndex int
	ended     bool
}

// Advance calls read until a frame is decoded or the stream ends, and
// returns the index of the current frame. Recovered failures come first,
// one per call, as *model.FrameDecodeError; the decoded frame follows
// them, so the caller must not read again in between.
func (c *ReadCursor) Advance(read func() bool) (int, error) {
	if len(c.failed) > 0 {
		index := c.failed[0]
		c.failed = c.failed[1:]
		return index, model.NewFrameDecodeError(index, errReadFailed)
	}
	if c.held {
		c.held = false
		return c.heldIndex, nil
	}
	if c.ended {
		return c.next, io.EOF
	}

	maxMisses := c.MaxMisses
	if maxMisses < 1 {
		maxMisses = 1
	}

	var misses []int
	for len(misses) < maxMisses {
		index := c.next
		c.next++
		if !read() {
			misses = append(misses, index)
			continue
		}
		if len(misses) == 0 {
			return index, nil
		}
		c.failed = misses[1:]
		c.held, c.heldIndex = true, index
		return misses[0], model.NewFrameDecodeError(misses[0], errReadFailed)
	}

	c.ended = true
	c.next = misses[0]
	return c.next, io.EOF
}
