package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

const (
	DefaultShards    = 8
	DefaultQueueSize = 1024
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	// EngineID is stamped on every record. Defaults to "engine-<uuid8>".
	EngineID string
	// Shards is the number of dispatch queues. Events sharing a stream ID
	// always use the same shard.
	Shards int
	// QueueSize is the capacity of each shard queue.
	QueueSize int
	// EnqueueTimeout bounds how long Log waits for room in a full queue
	// before failing with api.ErrUnavailable. Zero waits until the caller's
	// context is done or the service closes.
	EnqueueTimeout time.Duration

	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Service is the Log Sink Service. Log only hands records to a shard
// queue; sink I/O happens on one goroutine per shard.
type Service struct {
	id      string
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	emitter *logging.Emitter

	shards []chan *logging.Event
	seq    atomic.Uint64
	rr     atomic.Uint64

	mu        sync.RWMutex // guards closed and sends on shards
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	drained   chan struct{}
	closeErr  error
}

// New starts a service dispatching to sinks.
func New(opts Options, sinks ...logging.Sink) *Service {
	if opts.EngineID == "" {
		opts.EngineID = "engine-" + uuid.New().String()[:8]
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		id:      opts.EngineID,
		opts:    opts,
		logger:  logger.With("engine_id", opts.EngineID),
		metrics: NewMetrics(opts.Registerer),
		shards:  make([]chan *logging.Event, opts.Shards),
		closing: make(chan struct{}),
		drained: make(chan struct{}),
	}
	s.emitter = logging.NewEmitter(logging.EmitterConfig{
		EngineID: s.id,
		OnSinkError: func(sink string, err error) {
			s.metrics.SinkErrors.WithLabelValues(sink).Inc()
		},
	}, sinks...)

	for i := range s.shards {
		s.shards[i] = make(chan *logging.Event, opts.QueueSize)
		s.wg.Add(1)
		go s.dispatch(s.shards[i])
	}
	go func() {
		s.wg.Wait()
		s.closeErr = s.emitter.Close()
		close(s.drained)
	}()
	return s
}

// ID returns the engine ID stamped on records.
func (s *Service) ID() string { return s.id }

// Metrics returns the service's collectors.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Accepting reports whether Log can currently accept events.
func (s *Service) Accepting() bool {
	select {
	case <-s.closing:
		return false
	default:
		return true
	}
}

// Log validates req and hands it to the dispatcher.
//
// The record is either queued whole or not at all: a call that returns an
// error never leaves a partial event behind. A canceled caller may still
// find its event accepted if the hand-off won the race.
func (s *Service) Log(ctx context.Context, req *api.LogRequest) (err error) {
	ev, err := req.Event()
	if err != nil {
		s.metrics.Rejected.WithLabelValues(reasonInvalidArgument).Inc()
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.Rejected.WithLabelValues(reasonInternal).Inc()
			s.logger.Error("log call panicked", "panic", r)
			err = errx.With(api.ErrInternal, ": %w: %v", ErrPanic, r)
		}
	}()

	record := logging.NewEvent(ev, SourceFrom(ctx))
	record.Timestamp = s.opts.Now().UTC()
	record.EngineID = s.id
	return s.enqueue(ctx, record)
}

func (s *Service) enqueue(ctx context.Context, record *logging.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return s.reject(reasonUnavailable, errx.Wrap(api.ErrUnavailable, ErrClosed))
	}
	if err := ctx.Err(); err != nil {
		return s.reject(reasonCanceled, errx.Wrap(api.ErrCanceled, err))
	}

	q := s.shardFor(record)
	select {
	case q <- record:
		s.accepted(record)
		return nil
	default:
	}

	var timeout <-chan time.Time
	if s.opts.EnqueueTimeout > 0 {
		timer := time.NewTimer(s.opts.EnqueueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case q <- record:
		s.accepted(record)
		return nil
	case <-ctx.Done():
		return s.reject(reasonCanceled, errx.Wrap(api.ErrCanceled, ctx.Err()))
	case <-s.closing:
		return s.reject(reasonUnavailable, errx.Wrap(api.ErrUnavailable, ErrClosed))
	case <-timeout:
		return s.reject(reasonUnavailable, errx.With(api.ErrUnavailable, ": %w after %s", ErrOverloaded, s.opts.EnqueueTimeout))
	}
}

func (s *Service) accepted(record *logging.Event) {
	s.metrics.QueueDepth.Inc()
	s.metrics.Accepted.WithLabelValues(string(record.Severity)).Inc()
}

func (s *Service) reject(reason string, err error) error {
	s.metrics.Rejected.WithLabelValues(reason).Inc()
	return err
}

// shardFor keeps every event of a stream on one shard. Uncorrelated
// events are spread round-robin.
func (s *Service) shardFor(record *logging.Event) chan *logging.Event {
	n := uint64(len(s.shards))
	if record.StreamID != 0 {
		h := uint64(record.StreamID) * 0x9E3779B97F4A7C15
		return s.shards[(h>>32)%n]
	}
	return s.shards[s.rr.Add(1)%n]
}

func (s *Service) dispatch(q <-chan *logging.Event) {
	defer s.wg.Done()
	for record := range q {
		s.metrics.QueueDepth.Dec()
		record.Seq = s.seq.Add(1)
		if err := s.emitter.Emit(record); err != nil {
			s.logger.Warn("diagnostic sink write failed", "seq", record.Seq, "error", err)
		}
	}
}

// Close stops accepting events, delivers everything already queued and
// closes the sinks. Log calls made after Close fail with
// api.ErrUnavailable. If ctx ends before the drain completes, Close returns
// early and the drain continues in the background.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.mu.Lock()
		s.closed = true
		for _, q := range s.shards {
			close(q)
		}
		s.mu.Unlock()
	})

	select {
	case <-s.drained:
		return s.closeErr
	case <-ctx.Done():
		return errx.Wrap(ErrDrain, ctx.Err())
	}
}
