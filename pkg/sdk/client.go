// Package sdk provides a client for sending log events to an engine via
// JSON-RPC.
//
//	client, err := sdk.NewClient(ctx, sdk.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Log(ctx, api.LogEvent{
//	    Severity: api.SeverityError,
//	    Message:  "build failed",
//	    URN:      "urn:pkg:foo",
//	})
//
// Plugins launched by the engine find its address in ENGINELOG_ADDR.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/rpc"
)

// Environment variables read by DefaultConfig and set by the plugin host.
const (
	EnvAddr    = "ENGINELOG_ADDR"
	EnvNetwork = "ENGINELOG_NETWORK"
	EnvCodec   = "ENGINELOG_CODEC"
)

// Client is an engine log client. All methods are safe for concurrent use.
type Client struct {
	conn      io.Closer
	codec     rpc.Codec
	requestID atomic.Uint64
	mu        sync.Mutex // protects closed
	closed    bool

	// Concurrent request handling
	writeMu    sync.Mutex                 // serializes writes to the codec
	pendingMu  sync.Mutex                 // protects pending and readErr
	pending    map[uint64]*pendingRequest // in-flight requests by ID
	readErr    error
	readerOnce sync.Once // ensures reader goroutine starts once
	readerDone chan struct{}
}

type pendingRequest struct {
	ch chan response
}

// Config holds client configuration
type Config struct {
	// Network is "unix" or "tcp"
	Network string
	// Addr is the engine's socket path or host:port
	Addr string
	// Codec is "json" (default) or "cbor" and must match the engine
	Codec string
}

// DefaultConfig returns the configuration found in the environment.
func DefaultConfig() Config {
	cfg := Config{
		Network: os.Getenv(EnvNetwork),
		Addr:    os.Getenv(EnvAddr),
		Codec:   os.Getenv(EnvCodec),
	}
	if cfg.Network == "" {
		cfg.Network = guessNetwork(cfg.Addr)
	}
	return cfg
}

func guessNetwork(addr string) string {
	if addr == "" || strings.Contains(addr, "/") {
		return "unix"
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return "tcp"
	}
	return "unix"
}

// NewClient dials the engine described by cfg.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, ErrNoAddress
	}
	network := cfg.Network
	if network == "" {
		network = guessNetwork(cfg.Addr)
	}
	return Dial(ctx, network, cfg.Addr, cfg.Codec)
}

// Dial connects to an engine listening on network/addr.
func Dial(ctx context.Context, network, addr, codec string) (*Client, error) {
	factory, err := rpc.CodecByName(codec)
	if err != nil {
		return nil, errx.Wrap(ErrUnknownCodec, err)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errx.With(ErrDial, " %s %s: %w", network, addr, err)
	}
	return NewClientFromConn(conn, factory), nil
}

// NewClientFromConn wraps an established stream. Closing the client closes
// conn.
func NewClientFromConn(conn io.ReadWriteCloser, codec rpc.CodecFactory) *Client {
	if codec == nil {
		codec = rpc.NewJSONCodec
	}
	return &Client{
		conn:       conn,
		codec:      codec(conn, conn),
		pending:    make(map[uint64]*pendingRequest),
		readerDone: make(chan struct{}),
	}
}

// Log submits one event and waits for the engine's acknowledgement.
//
// When ctx ends first the engine is asked to cancel the call and ctx.Err()
// is returned. The event may or may not have been accepted in that case.
func (c *Client) Log(ctx context.Context, ev api.LogEvent) error {
	return c.sendRequestCtx(ctx, rpc.MethodLog, ev.Request(), nil)
}

// Ping checks that the engine is serving requests.
func (c *Client) Ping(ctx context.Context) error {
	return c.sendRequestCtx(ctx, rpc.MethodPing, nil, nil)
}

func (c *Client) Debugf(ctx context.Context, format string, args ...any) error {
	return c.logf(ctx, api.SeverityDebug, format, args...)
}

func (c *Client) Infof(ctx context.Context, format string, args ...any) error {
	return c.logf(ctx, api.SeverityInfo, format, args...)
}

func (c *Client) Warningf(ctx context.Context, format string, args ...any) error {
	return c.logf(ctx, api.SeverityWarning, format, args...)
}

func (c *Client) Errorf(ctx context.Context, format string, args ...any) error {
	return c.logf(ctx, api.SeverityError, format, args...)
}

func (c *Client) logf(ctx context.Context, severity api.Severity, format string, args ...any) error {
	return c.Log(ctx, api.LogEvent{Severity: severity, Message: fmt.Sprintf(format, args...)})
}

// Close closes the connection. In-flight calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.failPending(ErrClientClosed)
	return err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) sendRequestCtx(ctx context.Context, method string, params interface{}, result interface{}) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	c.readerOnce.Do(func() { go c.readLoop() })

	id := c.requestID.Add(1)
	pr := &pendingRequest{ch: make(chan response, 1)}

	c.pendingMu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.pendingMu.Unlock()
		return err
	}
	c.pending[id] = pr
	c.pendingMu.Unlock()

	if err := c.write(request{JSONRPC: "2.0", Method: method, Params: params, ID: &id}); err != nil {
		c.removePending(id)
		return errx.Wrap(ErrWriteRequest, err)
	}

	select {
	case resp, ok := <-pr.ch:
		if !ok {
			c.pendingMu.Lock()
			err := c.readErr
			c.pendingMu.Unlock()
			return err
		}
		if resp.Error != nil {
			return &RPCError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result != nil && len(resp.Result) > 0 {
			if err := c.codec.Unmarshal(resp.Result, result); err != nil {
				return errx.Wrap(ErrDecodeResult, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.removePending(id)
		// Best effort: the engine drops the call if it has not been handed
		// off yet.
		_ = c.write(request{JSONRPC: "2.0", Method: rpc.MethodCancel, Params: rpc.CancelParams{ID: id}})
		return ctx.Err()
	}
}

func (c *Client) write(req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.Encode(req)
}

func (c *Client) removePending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop routes responses to waiting callers until the stream ends.
func (c *Client) readLoop() {
	defer close(c.readerDone)
	for {
		var resp response
		if err := c.codec.Decode(&resp); err != nil {
			if errors.Is(err, rpc.ErrParse) {
				continue
			}
			c.failPending(errx.Wrap(ErrConnectionClosed, err))
			return
		}
		if resp.ID == nil {
			continue
		}

		c.pendingMu.Lock()
		pr, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.pendingMu.Unlock()

		if ok {
			pr.ch <- resp
		}
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
	for id, pr := range c.pending {
		close(pr.ch)
		delete(c.pending, id)
	}
}
