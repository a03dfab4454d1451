package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// JSONLWriter writes records as JSON-L.
// It implements Sink and is safe for concurrent use.
type JSONLWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

// RotateOptions configures size based rotation of a JSON-L file.
type RotateOptions struct {
	MaxSizeMB  int // rotate after this many megabytes
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewJSONLWriter creates a new JSON-L writer that appends to the given file path.
// The parent directory must already exist (caller is responsible for mkdir).
// The file is created if it does not exist.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	return newJSONLWriter(f), nil
}

// NewRotatingJSONLWriter appends to path and rotates it once it grows past
// opts.MaxSizeMB. Rotated files are kept next to path.
func NewRotatingJSONLWriter(path string, opts RotateOptions) (*JSONLWriter, error) {
	if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	return newJSONLWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}), nil
}

// NewJSONLStream writes JSON-L to w. Close does not close w.
func NewJSONLStream(w io.Writer) *JSONLWriter {
	return newJSONLWriter(nopCloser{w})
}

func newJSONLWriter(out io.WriteCloser) *JSONLWriter {
	return &JSONLWriter{
		out: out,
		enc: json.NewEncoder(out),
	}
}

func (w *JSONLWriter) Name() string { return "jsonl" }

// Write serializes the event as a single JSON line.
func (w *JSONLWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.out.(*os.File); ok {
		_ = f.Sync()
	}
	if err := w.out.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
