package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/lgr"
)

type WriterOptions struct {
	Folder string
	// Base prefixes every file name, normally the input name without extension.
	Base string
	// Format is "jpg" or "png".
	Format    string
	Quality   int
	Overwrite bool
}

// Writer persists accepted frames as numbered images. Sequence numbers are
// assigned per Write call, so a failed write still consumes its number and
// later file names do not depend on earlier failures.
type Writer struct {
	opts     WriterOptions
	format   imaging.Format
	ext      string
	sequence int
}

func NewWriter(opts WriterOptions) (*Writer, error) {
	w := &Writer{opts: opts}
	switch opts.Format {
	case "", "jpg", "jpeg":
		w.format, w.ext = imaging.JPEG, "jpg"
	case "png":
		w.format, w.ext = imaging.PNG, "png"
	default:
		return nil, &model.ConfigurationError{Field: "format", Reason: "unknown image format " + opts.Format}
	}
	if w.opts.Quality <= 0 {
		w.opts.Quality = 95
	}
	return w, nil
}

func (w *Writer) Folder() string {
	return w.opts.Folder
}

// FileName is the name of the capture with the given sequence taken at ts.
func (w *Writer) FileName(sequence int, ts time.Duration) string {
	ms := ts.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%s_slide%04d_%02dh%02dm%02ds%03d.%s",
		w.opts.Base,
		sequence,
		ms/3_600_000,
		ms/60_000%60,
		ms/1000%60,
		ms%1000,
		w.ext)
}

func (w *Writer) Write(ev model.ChangeEvent) (model.CaptureRecord, error) {
	w.sequence++
	name := w.FileName(w.sequence, ev.Frame.Timestamp)
	rec := model.CaptureRecord{
		Sequence:    w.sequence,
		Index:       ev.Frame.Index,
		Timestamp:   ev.Frame.Timestamp,
		TimestampMs: ev.Frame.Timestamp.Milliseconds(),
		Score:       ev.Score,
		File:        name,
		Path:        filepath.Join(w.opts.Folder, name),
	}

	fail := func(err error) (model.CaptureRecord, error) {
		return rec, model.NewOutputWriteError(rec.Sequence, rec.Index, rec.Path, err)
	}

	if ev.Frame.Image == nil {
		return fail(errors.New("frame has no image"))
	}

	if !w.opts.Overwrite {
		if _, err := os.Stat(rec.Path); err == nil {
			lgr.Logger.Debug("capture exists, reusing",
				slog.String("path", rec.Path),
			)
			rec.Reused = true
			return rec, nil
		}
	}

	if err := os.MkdirAll(w.opts.Folder, 0o755); err != nil {
		return fail(err)
	}

	err := writeAtomic(rec.Path, func(f *os.File) error {
		return imaging.Encode(f, ev.Frame.Image, w.format, imaging.JPEGQuality(w.opts.Quality))
	})
	if err != nil {
		return fail(err)
	}

	return rec, nil
}

type manifest struct {
	Base     string                `json:"base"`
	Captures []model.CaptureRecord `json:"captures"`
}

func (w *Writer) ManifestPath() string {
	return filepath.Join(w.opts.Folder, w.opts.Base+"_captures.json")
}

// WriteManifest records the captures of one run. The content depends only
// on the records, so re-running on the same input yields the same file.
func (w *Writer) WriteManifest(records []model.CaptureRecord) error {
	if records == nil {
		records = []model.CaptureRecord{}
	}
	data, err := json.MarshalIndent(manifest{Base: w.opts.Base, Captures: records}, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	path := w.ManifestPath()
	fail := func(err error) error {
		return model.NewOutputWriteError(0, -1, path, err)
	}

	if err := os.MkdirAll(w.opts.Folder, 0o755); err != nil {
		return fail(err)
	}
	err = writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return fail(err)
	}
	return nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place, so readers never see a partial file.
func writeAtomic(path string, fill func(f *os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".framex-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
