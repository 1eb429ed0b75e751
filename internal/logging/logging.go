package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultLogFile is created in the process working directory unless configured otherwise.
const DefaultLogFile = "file_manager.log"

// TimeLayout is the timestamp layout of every log line.
const TimeLayout = "2006-01-02 15:04:05"

// FileHandler is a slog.Handler that appends one line per record to a plain
// text file in the form "YYYY-MM-DD HH:mm:ss [INFO|ERROR]: message".
// Warnings and errors are tagged ERROR, everything else INFO. Attributes are
// not written, except that an attribute named "error" is appended to the
// message after a colon. The file is opened in append mode for every record,
// so it survives being removed or rotated externally. Write failures are
// reported to errOut and never returned to the caller.
type FileHandler struct {
	path   string
	level  slog.Leveler
	mu     *sync.Mutex
	now    func() time.Time
	errOut io.Writer
}

// NewFileHandler creates a handler appending to path at the given minimum level.
func NewFileHandler(path string, level slog.Leveler) *FileHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &FileHandler{
		path:   path,
		level:  level,
		mu:     &sync.Mutex{},
		now:    time.Now,
		errOut: os.Stderr,
	}
}

// Path returns the log file path.
func (h *FileHandler) Path() string {
	return h.path
}

func (h *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Tag maps a slog level to the tag written in the log file.
func Tag(level slog.Level) string {
	if level >= slog.LevelWarn {
		return "ERROR"
	}
	return "INFO"
}

func (h *FileHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = h.now()
	}

	var b strings.Builder
	b.WriteString(ts.Format(TimeLayout))
	b.WriteString(" [")
	b.WriteString(Tag(r.Level))
	b.WriteString("]: ")
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "error" {
			return true
		}
		b.WriteString(": ")
		b.WriteString(a.Value.Resolve().String())
		return false
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(h.errOut, "logging: failed to open log file %s: %v\n", h.path, err)
		return nil
	}
	if _, err := f.WriteString(b.String()); err != nil {
		fmt.Fprintf(h.errOut, "logging: failed to write log file %s: %v\n", h.path, err)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(h.errOut, "logging: failed to close log file %s: %v\n", h.path, err)
	}
	return nil
}

// WithAttrs returns h unchanged: bound attributes such as the session id
// only reach the verbose stderr output.
func (h *FileHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *FileHandler) WithGroup(_ string) slog.Handler {
	return h
}

// teeHandler fans a record out to several handlers.
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: hs}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: hs}
}

// New builds the application logger. Records at INFO and above go to the
// log file. With verbose set, every record down to DEBUG is also mirrored
// to stderr through a slog.TextHandler, attributes included; debug records
// never reach the file.
func New(logFile string, verbose bool, stderr io.Writer) *slog.Logger {
	if logFile == "" {
		logFile = DefaultLogFile
	}
	fh := NewFileHandler(logFile, slog.LevelInfo)
	if stderr != nil {
		fh.errOut = stderr
	}
	if !verbose || stderr == nil {
		return slog.New(fh)
	}
	text := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&teeHandler{handlers: []slog.Handler{fh, text}})
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
