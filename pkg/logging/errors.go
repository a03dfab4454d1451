package logging

import "errors"

var (
	ErrCreateLogFile  = errors.New("logging: create log file")
	ErrWriteEvent     = errors.New("logging: write event")
	ErrCloseWriter    = errors.New("logging: close writer")
	ErrCompileFilter  = errors.New("logging: compile filter")
	ErrEvalFilter     = errors.New("logging: evaluate filter")
	ErrBroadcastClose = errors.New("logging: broadcaster closed")
)
