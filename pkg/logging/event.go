package logging

import (
	"time"

	"github.com/jingkaihe/enginelog/pkg/api"
)

// Event is one record of the engine's diagnostic stream: an accepted
// api.LogEvent plus the metadata the engine stamps on acceptance.
// Message is always serialized, even when empty.
type Event struct {
	Timestamp time.Time    `json:"ts" yaml:"ts"`
	Seq       uint64       `json:"seq" yaml:"seq"`
	EngineID  string       `json:"engine_id" yaml:"engine_id"`
	Severity  api.Severity `json:"severity" yaml:"severity"`
	Message   string       `json:"message" yaml:"message"`
	URN       string       `json:"urn,omitempty" yaml:"urn,omitempty"`
	StreamID  int64        `json:"stream_id,omitempty" yaml:"stream_id,omitempty"`
	Ephemeral bool         `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
	Source    *Source      `json:"source,omitempty" yaml:"source,omitempty"`
}

// Source identifies the caller that submitted an event.
type Source struct {
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"` // "rpc", "http", "plugin"
	Conn      string `json:"conn,omitempty" yaml:"conn,omitempty"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Plugin    string `json:"plugin,omitempty" yaml:"plugin,omitempty"`
}

// NewEvent builds a record for ev. Seq, EngineID and Timestamp are filled
// in by the engine when it accepts the event.
func NewEvent(ev api.LogEvent, src *Source) *Event {
	return &Event{
		Severity:  ev.Severity,
		Message:   ev.Message,
		URN:       ev.URN,
		StreamID:  ev.StreamID,
		Ephemeral: ev.Ephemeral,
		Source:    src,
	}
}

// LogEvent returns the caller supplied part of the record.
func (e *Event) LogEvent() api.LogEvent {
	return api.LogEvent{
		Severity:  e.Severity,
		Message:   e.Message,
		URN:       e.URN,
		StreamID:  e.StreamID,
		Ephemeral: e.Ephemeral,
	}
}
