package engine

import "errors"

var (
	ErrClosed     = errors.New("engine: closed")
	ErrOverloaded = errors.New("engine: queue full")
	ErrDrain      = errors.New("engine: drain incomplete")
	ErrPanic      = errors.New("engine: panic while enqueuing")
)
