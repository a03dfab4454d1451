// Package engine implements the engine side of the Log contract: a
// service that accepts log events from many independent callers and
// dispatches them, in per-stream order, to the engine's diagnostic sinks.
package engine

import (
	"context"

	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// Engine is the capability every engine implementation exposes to callers.
//
// Log returns nil once the engine has accepted responsibility for the
// event. Errors wrap one of api.ErrInvalidArgument, api.ErrUnavailable,
// api.ErrInternal or api.ErrCanceled.
type Engine interface {
	Log(ctx context.Context, req *api.LogRequest) error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req *api.LogRequest) error

func (f EngineFunc) Log(ctx context.Context, req *api.LogRequest) error { return f(ctx, req) }

var (
	_ Engine = (*Service)(nil)
	_ Engine = EngineFunc(nil)
)

type sourceKey struct{}

// WithSource attaches the caller identity to ctx. Transports set it so
// accepted records carry where they came from.
func WithSource(ctx context.Context, src *logging.Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// SourceFrom returns the caller identity stored by WithSource, or nil.
func SourceFrom(ctx context.Context) *logging.Source {
	src, _ := ctx.Value(sourceKey{}).(*logging.Source)
	return src
}
