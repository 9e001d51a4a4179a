package lgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process-wide logger. Configure replaces it.
var Logger = slog.New(newTraceHandler(NewPrettyHandler(os.Stderr, &slog.HandlerOptions{
	Level:       slog.LevelInfo,
	ReplaceAttr: replaceAttr,
}, isTerminal(os.Stderr))))

type Options struct {
	Level string
	// File switches the logger to JSON records written to a rotating file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Configure(opts Options) {
	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: replaceAttr,
	}

	if opts.File == "" {
		Logger = slog.New(newTraceHandler(NewPrettyHandler(os.Stderr, hopts, isTerminal(os.Stderr))))
		return
	}

	Logger = slog.New(newTraceHandler(slog.NewJSONHandler(rotatingFile(opts), hopts)))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func rotatingFile(opts Options) io.Writer {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := opts.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 7
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize, // MB
		MaxBackups: maxBackups,
		MaxAge:     maxAge, // days
		Compress:   true,
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WithRun tags ctx with a run ID. The ID doubles as the trace ID so every
// record logged with the context can be correlated to one extraction run.
func WithRun(ctx context.Context, runID uuid.UUID) context.Context {
	var tid trace.TraceID
	copy(tid[:], runID[:])
	var sid trace.SpanID
	copy(sid[:], runID[8:])

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(ctx, sc)
}

// RunID returns the run ID stored by WithRun, or "".
func RunID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	tid := sc.TraceID()
	id, err := uuid.FromBytes(tid[:])
	if err != nil {
		return ""
	}
	return id.String()
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func fmtErr(err error) slog.Value {
	groupValues := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); frames != nil {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}
	return slog.GroupValue(groupValues...)
}

// marshalStack returns the stack recorded closest to where err started.
func marshalStack(err error) []stackFrame {
	var s []stackFrame
	for e := err; e != nil; e = errors.Unwrap(e) {
		st := xerrors.StackTrace(e)
		if len(st) == 0 {
			continue
		}

		frames := st.Frames()
		s = make([]stackFrame, len(frames))
		for i, v := range frames {
			s[i] = stackFrame{
				Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
				Func:   filepath.Base(v.Function),
				Line:   v.Line,
			}
		}
	}
	return s
}
