package sdk

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
)

// StreamOptions configures a StreamWriter.
type StreamOptions struct {
	Severity api.Severity
	URN      string
	// StreamID correlates the lines. Zero picks a fresh ID.
	StreamID  int64
	Ephemeral bool
	// Prefix is prepended to every line.
	Prefix string
}

// StreamWriter turns written text into one event per line. Lines are sent
// one at a time and each waits for its acknowledgement, so the engine
// records them in write order.
type StreamWriter struct {
	client *Client
	ctx    context.Context
	opts   StreamOptions

	mu  sync.Mutex
	buf []byte
}

// NewStreamWriter returns a writer logging through c. ctx bounds every
// Log call the writer makes.
func (c *Client) NewStreamWriter(ctx context.Context, opts StreamOptions) *StreamWriter {
	if opts.Severity == "" {
		opts.Severity = api.SeverityInfo
	}
	if opts.StreamID == 0 {
		opts.StreamID = NewStreamID()
	}
	return &StreamWriter{client: c, ctx: ctx, opts: opts}
}

// StreamID returns the stream ID shared by every line.
func (w *StreamWriter) StreamID() int64 { return w.opts.StreamID }

func (w *StreamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(bytes.TrimSuffix(w.buf[:i], []byte{'\r'}))
		w.buf = w.buf[i+1:]
		if err := w.send(line); err != nil {
			return 0, err
		}
	}
}

// Flush sends a trailing partial line, if any.
func (w *StreamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}
	line := string(w.buf)
	w.buf = nil
	if err := w.send(line); err != nil {
		return errx.Wrap(ErrFlushStream, err)
	}
	return nil
}

// Close flushes the writer. The client stays open.
func (w *StreamWriter) Close() error {
	return w.Flush()
}

func (w *StreamWriter) send(line string) error {
	return w.client.Log(w.ctx, api.LogEvent{
		Severity:  w.opts.Severity,
		Message:   w.opts.Prefix + line,
		URN:       w.opts.URN,
		StreamID:  w.opts.StreamID,
		Ephemeral: w.opts.Ephemeral,
	})
}

// NewStreamID returns a random positive stream ID.
func NewStreamID() int64 {
	for {
		u := uuid.New()
		id := int64(binary.BigEndian.Uint64(u[:8]) >> 1)
		if id != 0 {
			return id
		}
	}
}
