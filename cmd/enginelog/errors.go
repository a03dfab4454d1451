package main

import "errors"

// Config errors
var (
	ErrReadConfig   = errors.New("read config file")
	ErrLogLevel     = errors.New("invalid log level")
	ErrLogFormat    = errors.New("invalid log format")
	ErrOutputFormat = errors.New("invalid output format")
)

// Serve errors
var (
	ErrCreateSink  = errors.New("create sink")
	ErrListen      = errors.New("listen")
	ErrServeHTTP   = errors.New("serve http")
	ErrServeRPC    = errors.New("serve rpc")
	ErrCloseEngine = errors.New("close engine")
)

// Client errors
var (
	ErrConnect    = errors.New("connect to engine")
	ErrSendLog    = errors.New("send log event")
	ErrNoMessage  = errors.New("message required (pass arguments or --stdin)")
	ErrBadStream  = errors.New("invalid stream id")
	ErrReadStdin  = errors.New("read stdin")
	ErrOpenStore  = errors.New("open store")
	ErrQueryStore = errors.New("query store")
	ErrTailFile   = errors.New("tail file")
)

// Run errors
var (
	ErrPluginCommand = errors.New("plugin command required")
	ErrSocketDir     = errors.New("create socket dir")
)
