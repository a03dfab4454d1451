package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	// Codec frames each connection. Defaults to NewJSONCodec.
	Codec  CodecFactory
	Logger *slog.Logger
}

// Server accepts connections and serves each one with its own Handler.
type Server struct {
	engine engine.Engine
	codec  CodecFactory
	logger *slog.Logger

	nextConn atomic.Uint64
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

func NewServer(e engine.Engine, opts ServerOptions) *Server {
	codec := opts.Codec
	if codec == nil {
		codec = NewJSONCodec
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: e,
		codec:  codec,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen opens a listener for network "unix" or "tcp". A stale unix socket
// file is replaced and the new one is restricted to the current user.
func Listen(network, addr string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return nil, errx.Wrap(ErrListen, err)
		}
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, errx.Wrap(ErrListen, err)
	}
	if network == "unix" {
		if err := os.Chmod(addr, 0600); err != nil {
			ln.Close()
			return nil, errx.Wrap(ErrListen, err)
		}
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is done. Open connections are
// closed on return and their in-flight requests are awaited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closeConns()
				s.wg.Wait()
				return nil
			}
			s.closeConns()
			s.wg.Wait()
			return err
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	src := &logging.Source{
		Transport: "rpc",
		Conn:      "conn-" + strconv.FormatUint(s.nextConn.Add(1), 10),
		PID:       peerPID(conn),
	}
	logger := s.logger.With("conn", src.Conn, "pid", src.PID)
	logger.Debug("client connected")

	h := NewHandler(s.engine, s.codec(conn, conn), HandlerOptions{Source: src, Logger: logger})
	if err := h.Run(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("connection ended with error", "error", err)
		return
	}
	logger.Debug("client disconnected")
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}
