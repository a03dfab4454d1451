package sdk

import "errors"

var (
	ErrNoAddress        = errors.New("no engine address configured")
	ErrDial             = errors.New("dial engine")
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrClientClosed     = errors.New("client closed")
	ErrConnectionClosed = errors.New("engine connection closed")
	ErrWriteRequest     = errors.New("write request")
	ErrDecodeResult     = errors.New("decode result")
	ErrFlushStream      = errors.New("flush stream")
)
