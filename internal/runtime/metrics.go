package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/operation"
)

const metricsSubsystem = "dispatch"

// DispatchMetrics exports dispatch, operation, and arena statistics to
// Prometheus.
type DispatchMetrics struct {
	mu sync.Mutex

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	operationsActive *prometheus.GaugeVec
	arenaUsedBytes   prometheus.Gauge
	arenaPeakBytes   prometheus.Gauge
	arenaFailures    prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

func newDispatchCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newDispatchGaugeVec(namespace, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newArenaGauge(namespace, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "arena",
		Name:      name,
		Help:      help,
	})
}

// NewDispatchMetrics creates the collectors under namespace. A nil registerer
// selects prometheus.DefaultRegisterer.
func NewDispatchMetrics(namespace string, registerer prometheus.Registerer) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "diagflow"
	}

	return &DispatchMetrics{
		registerer:       registerer,
		requestsTotal:    newDispatchCounterVec(namespace, "requests_total", "Dispatch calls by identifier, action, and outcome", []string{"identifier", "action", "status"}),
		transitionsTotal: newDispatchCounterVec(namespace, "operation_transitions_total", "Operation state transitions by target state", []string{"identifier", "state"}),
		operationsActive: newDispatchGaugeVec(namespace, "operations_active", "Operations currently executing or suspended", []string{"identifier"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Dispatch call latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"action"},
		),
		arenaUsedBytes: newArenaGauge(namespace, "used_bytes", "Bytes currently allocated from the registry arena"),
		arenaPeakBytes: newArenaGauge(namespace, "peak_bytes", "Highest arena usage observed"),
		arenaFailures:  newArenaGauge(namespace, "allocation_failures", "Allocations refused because the arena was exhausted"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *DispatchMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.transitionsTotal,
		m.operationsActive,
		m.arenaUsedBytes,
		m.arenaPeakBytes,
		m.arenaFailures,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveRequest records one dispatch call.
func (m *DispatchMetrics) ObserveRequest(identifier string, action handlerpkg.Action, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := handlerpkg.StatusOK
	if err != nil {
		status = errspkg.KindOf(err).String()
	}
	m.requestsTotal.WithLabelValues(identifier, string(action), status).Inc()
	m.requestDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

// ObserveTransition records an operation state change.
func (m *DispatchMetrics) ObserveTransition(t operation.Transition) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(t.Identifier, t.To.String()).Inc()
	switch {
	case t.From == operation.Idle && t.To == operation.Executing:
		m.operationsActive.WithLabelValues(t.Identifier).Inc()
	case t.From.Running() && !t.To.Running():
		m.operationsActive.WithLabelValues(t.Identifier).Dec()
	}
}

// ObserveArena publishes arena usage.
func (m *DispatchMetrics) ObserveArena(stats arenapkg.Stats) {
	if m == nil {
		return
	}
	m.arenaUsedBytes.Set(float64(stats.Used))
	m.arenaPeakBytes.Set(float64(stats.Peak))
	m.arenaFailures.Set(float64(stats.Failures))
}

// Reset resets all metrics (useful for testing).
func (m *DispatchMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal.Reset()
	m.requestDuration.Reset()
	m.transitionsTotal.Reset()
	m.operationsActive.Reset()
	m.arenaUsedBytes.Set(0)
	m.arenaPeakBytes.Set(0)
	m.arenaFailures.Set(0)
}
