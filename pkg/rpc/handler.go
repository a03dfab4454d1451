package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

type Request struct {
	JSONRPC string    `json:"jsonrpc" cbor:"jsonrpc"`
	Method  string    `json:"method" cbor:"method"`
	Params  RawParams `json:"params,omitempty" cbor:"params,omitempty"`
	ID      *uint64   `json:"id,omitempty" cbor:"id,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc" cbor:"jsonrpc"`
	Result  interface{} `json:"result,omitempty" cbor:"result,omitempty"`
	Error   *Error      `json:"error,omitempty" cbor:"error,omitempty"`
	ID      *uint64     `json:"id,omitempty" cbor:"id,omitempty"`
}

type Error struct {
	Code    int    `json:"code" cbor:"code"`
	Message string `json:"message" cbor:"message"`
}

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeCancelled      = -32003
	ErrCodeUnavailable    = -32004
)

const (
	MethodLog    = "log"
	MethodCancel = "cancel"
	MethodPing   = "ping"
)

// CancelParams names the request a cancel call applies to.
type CancelParams struct {
	ID uint64 `json:"id" cbor:"id"`
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Source is stamped on every record submitted through the handler.
	Source *logging.Source
	Logger *slog.Logger
}

// Handler serves the Log contract on a single stream. Each log request
// runs on its own goroutine so a slow hand-off never blocks cancel
// requests that follow it on the stream. Pipelined log requests sharing a
// stream ID may therefore reach the engine out of order; callers that need
// per-stream order wait for each ack before sending the next request.
type Handler struct {
	engine    engine.Engine
	codec     Codec
	source    *logging.Source
	logger    *slog.Logger
	mu        sync.Mutex     // protects codec writes
	wg        sync.WaitGroup // tracks in-flight requests
	cancelsMu sync.Mutex
	cancels   map[uint64]context.CancelFunc // per-request cancel funcs
}

func NewHandler(e engine.Engine, codec Codec, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:  e,
		codec:   codec,
		source:  opts.Source,
		logger:  logger,
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// Run reads requests until the stream ends or ctx is done, then waits for
// in-flight requests to finish. A clean end of stream or a done ctx
// returns nil. A read blocked on the stream does not hold up a done ctx;
// its goroutine exits once the stream is closed.
func (h *Handler) Run(ctx context.Context) error {
	frames := make(chan decodedFrame)
	stop := make(chan struct{})
	defer close(stop)
	go h.readFrames(frames, stop)

	var readErr error
loop:
	for {
		var frame decodedFrame
		select {
		case <-ctx.Done():
			break loop
		case frame = <-frames:
		}
		req := frame.req
		if err := frame.err; err != nil {
			if errors.Is(err, ErrParse) {
				h.sendError(nil, ErrCodeParse, "Parse error")
				continue
			}
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break loop
		}

		if req.JSONRPC != "2.0" || req.Method == "" {
			h.sendError(req.ID, ErrCodeInvalidRequest, "Invalid request")
			continue
		}

		// cancel and ping never block, answer them inline
		switch req.Method {
		case MethodCancel:
			if resp := h.handleCancel(&req); resp != nil && req.ID != nil {
				h.sendResponse(resp)
			}
			continue
		case MethodPing:
			if req.ID != nil {
				h.sendResponse(&Response{JSONRPC: "2.0", Result: struct{}{}, ID: req.ID})
			}
			continue
		}

		h.wg.Add(1)
		go func(r Request) {
			defer h.wg.Done()

			reqCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			if r.ID != nil {
				h.cancelsMu.Lock()
				h.cancels[*r.ID] = cancel
				h.cancelsMu.Unlock()

				defer func() {
					h.cancelsMu.Lock()
					delete(h.cancels, *r.ID)
					h.cancelsMu.Unlock()
				}()
			}

			resp := h.handleRequest(reqCtx, &r)
			if resp != nil && r.ID != nil {
				h.sendResponse(resp)
			}
		}(req)
	}

	h.wg.Wait()
	return readErr
}

type decodedFrame struct {
	req Request
	err error
}

// readFrames decodes the stream until a read fails for good or stop is
// closed.
func (h *Handler) readFrames(frames chan<- decodedFrame, stop <-chan struct{}) {
	for {
		var frame decodedFrame
		frame.err = h.codec.Decode(&frame.req)
		select {
		case frames <- frame:
		case <-stop:
			return
		}
		if frame.err != nil && !errors.Is(frame.err, ErrParse) {
			return
		}
	}
}

func (h *Handler) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case MethodLog:
		return h.handleLog(ctx, req)
	default:
		return &Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: ErrCodeMethodNotFound, Message: "Method not found"},
			ID:      req.ID,
		}
	}
}

func (h *Handler) handleLog(ctx context.Context, req *Request) *Response {
	var params api.LogRequest
	if len(req.Params) == 0 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "invalid argument: params are required")
	}
	if err := h.codec.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "invalid argument: "+err.Error())
	}

	if h.source != nil {
		ctx = engine.WithSource(ctx, h.source)
	}
	if err := h.engine.Log(ctx, &params); err != nil {
		code := CodeFor(err)
		if code == ErrCodeInternal {
			h.logger.Error("log call failed", "error", err)
		}
		return errorResponse(req.ID, code, err.Error())
	}

	return &Response{JSONRPC: "2.0", Result: struct{}{}, ID: req.ID}
}

func (h *Handler) handleCancel(req *Request) *Response {
	var params CancelParams
	if len(req.Params) > 0 {
		if err := h.codec.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
	}

	h.cancelsMu.Lock()
	cancel, ok := h.cancels[params.ID]
	h.cancelsMu.Unlock()

	if ok {
		cancel()
	}

	return &Response{
		JSONRPC: "2.0",
		Result:  map[string]interface{}{"cancelled": ok},
		ID:      req.ID,
	}
}

// CodeFor maps an engine error to its wire code.
func CodeFor(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidArgument):
		return ErrCodeInvalidParams
	case errors.Is(err, api.ErrUnavailable):
		return ErrCodeUnavailable
	case errors.Is(err, api.ErrCanceled):
		return ErrCodeCancelled
	default:
		return ErrCodeInternal
	}
}

func errorResponse(id *uint64, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

func (h *Handler) sendResponse(resp *Response) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.codec.Encode(resp); err != nil {
		h.logger.Debug("write response failed", "error", err)
	}
}

func (h *Handler) sendError(id *uint64, code int, message string) {
	h.sendResponse(errorResponse(id, code, message))
}

// RunRPC serves the engine over stdin and stdout using JSON lines.
func RunRPC(ctx context.Context, e engine.Engine) error {
	handler := NewHandler(e, NewJSONCodec(os.Stdin, os.Stdout), HandlerOptions{
		Source: &logging.Source{Transport: "stdio", PID: os.Getppid()},
	})
	return handler.Run(ctx)
}
