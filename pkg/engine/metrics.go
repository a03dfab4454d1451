package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons used as the "reason" label.
const (
	reasonInvalidArgument = "invalid_argument"
	reasonUnavailable     = "unavailable"
	reasonCanceled        = "canceled"
	reasonInternal        = "internal"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Accepted   *prometheus.CounterVec
	Rejected   *prometheus.CounterVec
	SinkErrors *prometheus.CounterVec
	QueueDepth prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enginelog_events_accepted_total",
			Help: "Log events accepted into the diagnostic stream",
		}, []string{"severity"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enginelog_events_rejected_total",
			Help: "Log calls that did not result in an accepted event",
		}, []string{"reason"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enginelog_sink_errors_total",
			Help: "Failed writes to diagnostic sinks",
		}, []string{"sink"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "enginelog_queue_depth",
			Help: "Accepted events waiting for dispatch",
		}),
	}
}
