package forward

import "errors"

var (
	ErrConfig       = errors.New("forward: invalid config")
	ErrEncode       = errors.New("forward: encode record")
	ErrProduce      = errors.New("forward: produce to kafka")
	ErrIndex        = errors.New("forward: index into opensearch")
	ErrCreateClient = errors.New("forward: create client")
)
