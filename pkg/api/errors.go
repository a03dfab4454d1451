package api

import "errors"

// Error classes surfaced by the Log contract. Concrete errors wrap one of
// these, so callers classify with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("engine unavailable")
	ErrInternal        = errors.New("internal engine error")
	ErrCanceled        = errors.New("log call canceled")
)
