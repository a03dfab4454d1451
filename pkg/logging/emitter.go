package logging

import (
	"errors"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// EmitterConfig holds the static metadata configured at engine startup.
type EmitterConfig struct {
	EngineID string // Stamped onto events that do not carry one

	// OnSinkError, if set, is called for every failed sink write.
	OnSinkError func(sink string, err error)
}

// Emitter dispatches records to one or more sinks.
//
// A failing sink does not stop delivery to the remaining sinks.
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter creates an emitter with the given configuration and sinks.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	return &Emitter{
		config: cfg,
		sinks:  sinks,
	}
}

// Sinks returns the registered sinks.
func (e *Emitter) Sinks() []Sink {
	return e.sinks
}

// Emit stamps the engine ID and writes event to every sink.
// Returns the joined sink errors.
func (e *Emitter) Emit(event *Event) error {
	if event.EngineID == "" {
		event.EngineID = e.config.EngineID
	}

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			name := SinkName(sink)
			if e.config.OnSinkError != nil {
				e.config.OnSinkError(name, err)
			}
			errs = append(errs, errx.With(ErrWriteEvent, " to %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks. Returns the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
