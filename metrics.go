package xroute

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by pipelines and routers.
// A nil *Metrics records nothing.
type Metrics struct {
	stages        *prometheus.CounterVec   // route, operation, outcome
	stageDuration *prometheus.HistogramVec // route, operation
	messages      *prometheus.CounterVec   // route, result
	transport     *prometheus.CounterVec   // route, event
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused, so several routers may
// share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xroute",
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Stage outcomes by route, operation and outcome",
		}, []string{"route", "operation", "outcome"}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xroute",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage duration in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"route", "operation"}),

		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xroute",
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Messages handled by route and result (delivered, filtered, failed)",
		}, []string{"route", "result"}),

		transport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xroute",
			Subsystem: "router",
			Name:      "transport_events_total",
			Help:      "Router transport events by route (received, published, decode_error, publish_error, ack_error)",
		}, []string{"route", "event"}),
	}

	var err error
	if m.stages, err = registerCollector(reg, m.stages); err != nil {
		return nil, err
	}
	if m.stageDuration, err = registerCollector(reg, m.stageDuration); err != nil {
		return nil, err
	}
	if m.messages, err = registerCollector(reg, m.messages); err != nil {
		return nil, err
	}
	if m.transport, err = registerCollector(reg, m.transport); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeStage(route string, op OperationType, kind OutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(route, op.String(), kind.String()).Inc()
	m.stageDuration.WithLabelValues(route, op.String()).Observe(d.Seconds())
}

func (m *Metrics) observeMessage(route, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(route, result).Inc()
}

func (m *Metrics) observeTransport(route, event string) {
	if m == nil {
		return
	}
	m.transport.WithLabelValues(route, event).Inc()
}
