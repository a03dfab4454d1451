// Package httpapi exposes the Log contract over HTTP next to health,
// metrics and a live websocket feed of accepted records.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/engine"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// DefaultMaxBodyBytes caps the size of a POST /v1/log body.
const DefaultMaxBodyBytes = 1 << 20

// Options configures the router. Only Engine is required.
type Options struct {
	Engine engine.Engine
	// Broadcaster feeds GET /v1/stream. Nil disables the route.
	Broadcaster *logging.Broadcaster
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Ready reports whether the engine accepts events. Nil means always.
	Ready        func() bool
	MaxBodyBytes int64
	// StreamBuffer is the per-subscriber buffer of the live feed.
	StreamBuffer int
	Logger       *slog.Logger
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

type router struct {
	opts   Options
	logger *slog.Logger
}

// NewRouter returns a chi router serving the engine.
func NewRouter(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &router{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Post("/v1/log", rt.handleLog)
	r.Get("/healthz", rt.handleHealth)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Broadcaster != nil {
		r.Get("/v1/stream", rt.handleStream)
	}
	return r
}

func (rt *router) handleLog(w http.ResponseWriter, r *http.Request) {
	var req api.LogRequest
	body := io.LimitReader(r.Body, rt.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", errx.Wrap(ErrDecodeBody, err))
		return
	}

	ctx := engine.WithSource(r.Context(), &logging.Source{Transport: "http", Conn: r.RemoteAddr})
	if err := rt.opts.Engine.Log(ctx, &req); err != nil {
		status, errType := statusFor(err)
		if status == http.StatusInternalServerError {
			rt.logger.Error("log call failed", "remote", r.RemoteAddr, "error", err)
		}
		writeError(w, r, status, errType, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Ready != nil && !rt.opts.Ready() {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "closing"})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// statusFor maps an engine error to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, api.ErrInvalidArgument):
		return http.StatusBadRequest, "InvalidArgument"
	case errors.Is(err, api.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	case errors.Is(err, api.ErrCanceled):
		return http.StatusRequestTimeout, "Cancelled"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType string, err error) {
	render.Status(r, status)
	render.JSON(w, r, &ErrorResponse{ErrorType: errType, ErrorMessage: err.Error()})
}
