package sdk

import (
	"errors"
	"fmt"

	"github.com/jingkaihe/enginelog/pkg/rpc"
)

// Error codes returned by the engine.
const (
	ErrCodeParse          = rpc.ErrCodeParse
	ErrCodeInvalidRequest = rpc.ErrCodeInvalidRequest
	ErrCodeMethodNotFound = rpc.ErrCodeMethodNotFound
	ErrCodeInvalidParams  = rpc.ErrCodeInvalidParams
	ErrCodeInternal       = rpc.ErrCodeInternal
	ErrCodeCancelled      = rpc.ErrCodeCancelled
	ErrCodeUnavailable    = rpc.ErrCodeUnavailable
)

type request struct {
	JSONRPC string      `json:"jsonrpc" cbor:"jsonrpc"`
	Method  string      `json:"method" cbor:"method"`
	Params  interface{} `json:"params,omitempty" cbor:"params,omitempty"`
	ID      *uint64     `json:"id,omitempty" cbor:"id,omitempty"`
}

type response struct {
	JSONRPC string        `json:"jsonrpc" cbor:"jsonrpc"`
	Result  rpc.RawParams `json:"result,omitempty" cbor:"result,omitempty"`
	Error   *rpcError     `json:"error,omitempty" cbor:"error,omitempty"`
	ID      *uint64       `json:"id,omitempty" cbor:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
}

// RPCError is an error reported by the engine.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
}

// IsInvalidArgument reports whether the engine rejected the event as
// malformed. Retrying the same event will fail again.
func IsInvalidArgument(err error) bool { return hasCode(err, ErrCodeInvalidParams) }

// IsUnavailable reports whether the engine could not accept the event
// because it is shutting down or overloaded.
func IsUnavailable(err error) bool { return hasCode(err, ErrCodeUnavailable) }

// IsCancelled reports whether the engine dropped the call after a cancel.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

func hasCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
