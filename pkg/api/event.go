package api

import (
	"github.com/jingkaihe/enginelog/internal/errx"
)

// LogEvent is one diagnostic message submitted by a caller to the engine.
// It is a plain value and never mutated after construction.
type LogEvent struct {
	Severity Severity
	Message  string
	// URN names the resource the message pertains to. Empty means a global
	// message.
	URN string
	// StreamID correlates related messages, such as lines of the same output
	// stream. Zero means no correlation.
	StreamID int64
	// Ephemeral marks the message as transient status the engine may
	// display without keeping it in the final log.
	Ephemeral bool
}

// Request returns the wire form of the event.
func (e LogEvent) Request() *LogRequest {
	msg := e.Message
	return &LogRequest{
		Severity:  e.Severity,
		Message:   &msg,
		URN:       e.URN,
		StreamID:  e.StreamID,
		Ephemeral: e.Ephemeral,
	}
}

// LogRequest is the params payload of a Log call. Message is a pointer so an
// absent message can be told apart from an empty one.
type LogRequest struct {
	Severity  Severity `json:"severity"`
	Message   *string  `json:"message,omitempty"`
	URN       string   `json:"urn,omitempty"`
	StreamID  int64    `json:"stream_id,omitempty"`
	Ephemeral bool     `json:"ephemeral,omitempty"`
}

// Event validates the request and returns the event it carries. Failures
// wrap ErrInvalidArgument.
func (r *LogRequest) Event() (LogEvent, error) {
	if r == nil {
		return LogEvent{}, errx.With(ErrInvalidArgument, ": empty request")
	}
	if !r.Severity.Valid() {
		return LogEvent{}, errx.With(ErrInvalidArgument, ": unknown severity %q", string(r.Severity))
	}
	if r.Message == nil {
		return LogEvent{}, errx.With(ErrInvalidArgument, ": message is required")
	}
	return LogEvent{
		Severity:  r.Severity,
		Message:   *r.Message,
		URN:       r.URN,
		StreamID:  r.StreamID,
		Ephemeral: r.Ephemeral,
	}, nil
}
