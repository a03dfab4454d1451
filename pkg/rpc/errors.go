package rpc

import "errors"

var (
	ErrParse         = errors.New("rpc: parse frame")
	ErrFrameTooLarge = errors.New("rpc: frame too large")
	ErrUnknownCodec  = errors.New("rpc: unknown codec")
	ErrListen        = errors.New("rpc: listen")
)
