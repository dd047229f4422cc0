package runtime

import (
	"math"
	"slices"
	"sync"
	"time"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	"github.com/drblury/diagflow/internal/runtime/operation"
)

const latencySampleSize = 256

// HandlerStats accumulates call statistics for one registration.
type HandlerStats struct {
	mu sync.Mutex

	calls       uint64
	failures    uint64
	inFlight    uint64
	maxInFlight uint64
	totalTime   int64
	lastCalled  time.Time
	errors      ErrorBreakdown
	latency     *latencyWindow
}

// StatsSnapshot is a point-in-time copy of HandlerStats.
type StatsSnapshot struct {
	Calls               uint64         `json:"calls"`
	Failures            uint64         `json:"failures"`
	InFlight            uint64         `json:"in_flight"`
	MaxInFlight         uint64         `json:"max_in_flight"`
	TotalProcessingTime int64          `json:"total_processing_time_ns"`
	LastCalledAt        time.Time      `json:"last_called_at,omitzero"`
	Latency             LatencyMetrics `json:"latency"`
	Errors              ErrorBreakdown `json:"errors"`
}

// RegistrationInfo is the introspection view of one registration.
type RegistrationInfo struct {
	Identifier string          `json:"id"`
	Kind       HandlerKind     `json:"kind"`
	Category   string          `json:"category,omitempty"`
	Schema     string          `json:"schema,omitempty"`
	Operation  *operation.Info `json:"operation,omitempty"`
	State      string          `json:"state,omitempty"`
	Stats      StatsSnapshot   `json:"stats"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

// ErrorBreakdown counts failures by error kind.
type ErrorBreakdown struct {
	NotFound   uint64 `json:"not_found"`
	Transition uint64 `json:"transition"`
	Payload    uint64 `json:"payload"`
	Schema     uint64 `json:"schema"`
	Allocation uint64 `json:"allocation"`
	Handler    uint64 `json:"handler"`
	Other      uint64 `json:"other"`
	LastError  string `json:"last_error,omitempty"`
}

func newHandlerStats() *HandlerStats {
	return &HandlerStats{latency: newLatencyWindow(latencySampleSize)}
}

func (h *HandlerStats) onCallStart() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.inFlight++
	h.maxInFlight = max(h.maxInFlight, h.inFlight)
}

func (h *HandlerStats) onCallFinish(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight > 0 {
		h.inFlight--
	}
	h.calls++
	if err != nil {
		h.failures++
		h.errors.Record(errspkg.KindOf(err), err)
	}
	h.totalTime += int64(duration)
	h.lastCalled = time.Now().UTC()
	h.latency.Add(duration)
}

// Snapshot copies the current statistics.
func (h *HandlerStats) Snapshot() StatsSnapshot {
	if h == nil {
		return StatsSnapshot{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	latency := h.latency.Snapshot()
	if h.calls > 0 {
		latency.AverageNs = h.totalTime / int64(h.calls)
	}
	return StatsSnapshot{
		Calls:               h.calls,
		Failures:            h.failures,
		InFlight:            h.inFlight,
		MaxInFlight:         h.maxInFlight,
		TotalProcessingTime: h.totalTime,
		LastCalledAt:        h.lastCalled,
		Latency:             latency,
		Errors:              h.errors,
	}
}

// Record counts err under its kind.
func (e *ErrorBreakdown) Record(kind errspkg.Kind, err error) {
	switch kind {
	case errspkg.KindNone:
		if err == nil {
			return
		}
		e.Other++
	case errspkg.NotFound:
		e.NotFound++
	case errspkg.OperationBusy, errspkg.InvalidTransition:
		e.Transition++
	case errspkg.MalformedPayload:
		e.Payload++
	case errspkg.SchemaViolation:
		e.Schema++
	case errspkg.AllocationFailure:
		e.Allocation++
	case errspkg.HandlerFailure:
		e.Handler++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	metrics.LastNs = lw.last
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := range lw.filled {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	slices.Sort(samples)

	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	metrics.AverageNs = sum / int64(len(samples))
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}
