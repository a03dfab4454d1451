package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

type captureSink struct {
	mu     sync.Mutex
	events []*logging.Event
}

func (s *captureSink) Write(event *logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) snapshot() []*logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*logging.Event(nil), s.events...)
}

type testPeer struct {
	in     *io.PipeWriter
	out    *bufio.Scanner
	done   chan error
	cancel context.CancelFunc
}

func startHandler(t *testing.T, e engine.Engine, src *logging.Source) *testPeer {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	h := NewHandler(e, NewJSONCodec(reqR, respW), HandlerOptions{Source: src})
	done := make(chan error, 1)
	go func() {
		done <- h.Run(ctx)
		respW.Close()
	}()

	p := &testPeer{in: reqW, out: bufio.NewScanner(respR), done: done, cancel: cancel}
	t.Cleanup(func() {
		reqW.Close()
		cancel()
		respR.Close()
	})
	return p
}

func (p *testPeer) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(p.in, line+"\n")
	require.NoError(t, err)
}

func (p *testPeer) recv(t *testing.T) map[string]any {
	t.Helper()
	require.True(t, p.out.Scan(), "expected a response line")
	var msg map[string]any
	require.NoError(t, json.Unmarshal(p.out.Bytes(), &msg))
	return msg
}

func errorCode(t *testing.T, msg map[string]any) int {
	t.Helper()
	e, ok := msg["error"].(map[string]any)
	require.True(t, ok, "expected error in %v", msg)
	return int(e["code"].(float64))
}

func newService(t *testing.T) (*engine.Service, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	svc := engine.New(engine.Options{EngineID: "engine-test"}, sink)
	return svc, sink
}

func closeService(t *testing.T, svc *engine.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))
}

func TestHandlerLogAcknowledges(t *testing.T) {
	svc, sink := newService(t)
	p := startHandler(t, svc, &logging.Source{Transport: "rpc", Conn: "conn-1"})

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"ERROR","message":"build failed","urn":"urn:pkg:foo"},"id":1}`)
	resp := p.recv(t)
	assert.Equal(t, float64(1), resp["id"])
	assert.Equal(t, map[string]any{}, resp["result"])
	assert.Nil(t, resp["error"])

	closeService(t, svc)
	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, api.SeverityError, events[0].Severity)
	assert.Equal(t, "build failed", events[0].Message)
	assert.Equal(t, "urn:pkg:foo", events[0].URN)
	assert.False(t, events[0].Ephemeral)
	require.NotNil(t, events[0].Source)
	assert.Equal(t, "conn-1", events[0].Source.Conn)
}

func TestHandlerLogInvalidArgument(t *testing.T) {
	svc, sink := newService(t)
	p := startHandler(t, svc, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"FATAL","message":"x"},"id":1}`)
	assert.Equal(t, ErrCodeInvalidParams, errorCode(t, p.recv(t)))

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO"},"id":2}`)
	assert.Equal(t, ErrCodeInvalidParams, errorCode(t, p.recv(t)))

	p.send(t, `{"jsonrpc":"2.0","method":"log","id":3}`)
	assert.Equal(t, ErrCodeInvalidParams, errorCode(t, p.recv(t)))

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO","message":""},"id":4}`)
	resp := p.recv(t)
	assert.Nil(t, resp["error"])

	closeService(t, svc)
	require.Len(t, sink.snapshot(), 1)
}

func TestHandlerUnavailableAfterClose(t *testing.T) {
	svc, _ := newService(t)
	closeService(t, svc)
	p := startHandler(t, svc, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO","message":"late"},"id":1}`)
	assert.Equal(t, ErrCodeUnavailable, errorCode(t, p.recv(t)))
}

func TestHandlerInternalError(t *testing.T) {
	e := engine.EngineFunc(func(context.Context, *api.LogRequest) error {
		return errx.With(api.ErrInternal, ": boom")
	})
	p := startHandler(t, e, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO","message":"x"},"id":7}`)
	resp := p.recv(t)
	assert.Equal(t, ErrCodeInternal, errorCode(t, resp))
	assert.Equal(t, float64(7), resp["id"])
}

func TestHandlerParseErrorKeepsStream(t *testing.T) {
	svc, _ := newService(t)
	defer closeService(t, svc)
	p := startHandler(t, svc, nil)

	p.send(t, `{not json`)
	assert.Equal(t, ErrCodeParse, errorCode(t, p.recv(t)))

	p.send(t, `{"jsonrpc":"2.0","method":"ping","id":2}`)
	resp := p.recv(t)
	assert.Equal(t, float64(2), resp["id"])
	assert.Nil(t, resp["error"])
}

func TestHandlerUnknownMethod(t *testing.T) {
	p := startHandler(t, engine.EngineFunc(func(context.Context, *api.LogRequest) error { return nil }), nil)

	p.send(t, `{"jsonrpc":"2.0","method":"exec","id":1}`)
	assert.Equal(t, ErrCodeMethodNotFound, errorCode(t, p.recv(t)))

	p.send(t, `{"method":"log","id":2}`)
	assert.Equal(t, ErrCodeInvalidRequest, errorCode(t, p.recv(t)))
}

func TestHandlerNotificationGetsNoResponse(t *testing.T) {
	svc, sink := newService(t)
	p := startHandler(t, svc, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"DEBUG","message":"fire and forget"}}`)
	p.send(t, `{"jsonrpc":"2.0","method":"ping","id":9}`)
	resp := p.recv(t)
	assert.Equal(t, float64(9), resp["id"])

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	closeService(t, svc)
}

func TestHandlerCancelInFlight(t *testing.T) {
	started := make(chan struct{})
	e := engine.EngineFunc(func(ctx context.Context, _ *api.LogRequest) error {
		close(started)
		<-ctx.Done()
		return errx.Wrap(api.ErrCanceled, ctx.Err())
	})
	p := startHandler(t, e, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO","message":"slow"},"id":5}`)
	<-started
	p.send(t, `{"jsonrpc":"2.0","method":"cancel","params":{"id":5},"id":6}`)

	got := map[float64]map[string]any{}
	for range 2 {
		msg := p.recv(t)
		got[msg["id"].(float64)] = msg
	}
	assert.Equal(t, map[string]any{"cancelled": true}, got[6]["result"])
	assert.Equal(t, ErrCodeCancelled, errorCode(t, got[5]))
}

func TestHandlerCancelUnknownID(t *testing.T) {
	p := startHandler(t, engine.EngineFunc(func(context.Context, *api.LogRequest) error { return nil }), nil)

	p.send(t, `{"jsonrpc":"2.0","method":"cancel","params":{"id":42},"id":1}`)
	resp := p.recv(t)
	assert.Equal(t, map[string]any{"cancelled": false}, resp["result"])
}

func TestHandlerRunReturnsOnEOF(t *testing.T) {
	p := startHandler(t, engine.EngineFunc(func(context.Context, *api.LogRequest) error { return nil }), nil)
	require.NoError(t, p.in.Close())

	select {
	case err := <-p.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop at end of stream")
	}
}

func TestHandlerRunReturnsOnContextWhileReading(t *testing.T) {
	p := startHandler(t, engine.EngineFunc(func(context.Context, *api.LogRequest) error { return nil }), nil)

	// nothing is written and the input stays open
	p.cancel()

	select {
	case err := <-p.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop when its context was cancelled")
	}
}

func TestHandlerContextCancelsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	e := engine.EngineFunc(func(ctx context.Context, _ *api.LogRequest) error {
		close(started)
		<-ctx.Done()
		return errx.Wrap(api.ErrCanceled, ctx.Err())
	})
	p := startHandler(t, e, nil)

	p.send(t, `{"jsonrpc":"2.0","method":"log","params":{"severity":"INFO","message":"slow"},"id":1}`)
	<-started
	p.cancel()

	assert.Equal(t, ErrCodeCancelled, errorCode(t, p.recv(t)))
	select {
	case err := <-p.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop when its context was cancelled")
	}
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidParams, CodeFor(errx.With(api.ErrInvalidArgument, ": x")))
	assert.Equal(t, ErrCodeUnavailable, CodeFor(errx.With(api.ErrUnavailable, ": x")))
	assert.Equal(t, ErrCodeCancelled, CodeFor(errx.Wrap(api.ErrCanceled, context.Canceled)))
	assert.Equal(t, ErrCodeInternal, CodeFor(errx.With(api.ErrInternal, ": x")))
	assert.Equal(t, ErrCodeInternal, CodeFor(io.ErrUnexpectedEOF))
}
