package httpapi

import "errors"

var (
	ErrDecodeBody = errors.New("decode request body")
	ErrBadQuery   = errors.New("bad query parameter")
)
