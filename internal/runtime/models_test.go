package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	"github.com/drblury/diagflow/internal/runtime/jsoncodec"
)

func TestHandlerStatsSnapshot(t *testing.T) {
	stats := newHandlerStats()

	stats.onCallStart()
	stats.onCallStart()
	stats.onCallFinish(2*time.Millisecond, nil)
	stats.onCallFinish(4*time.Millisecond, errspkg.New(errspkg.MalformedPayload, "put", "config/limits", nil))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(2), snap.Calls)
	assert.Equal(t, uint64(1), snap.Failures)
	assert.Equal(t, uint64(0), snap.InFlight)
	assert.Equal(t, uint64(2), snap.MaxInFlight)
	assert.Equal(t, int64(6*time.Millisecond), snap.TotalProcessingTime)
	assert.Equal(t, int64(3*time.Millisecond), snap.Latency.AverageNs)
	assert.Equal(t, int64(4*time.Millisecond), snap.Latency.LastNs)
	assert.Equal(t, uint64(1), snap.Errors.Payload)
	assert.Contains(t, snap.Errors.LastError, "malformed_payload")
	assert.False(t, snap.LastCalledAt.IsZero())
}

func TestHandlerStatsNilSnapshot(t *testing.T) {
	var stats *HandlerStats
	assert.Equal(t, StatsSnapshot{}, stats.Snapshot())
}

func TestErrorBreakdownRecord(t *testing.T) {
	tests := []struct {
		kind errspkg.Kind
		get  func(ErrorBreakdown) uint64
	}{
		{errspkg.NotFound, func(b ErrorBreakdown) uint64 { return b.NotFound }},
		{errspkg.OperationBusy, func(b ErrorBreakdown) uint64 { return b.Transition }},
		{errspkg.InvalidTransition, func(b ErrorBreakdown) uint64 { return b.Transition }},
		{errspkg.MalformedPayload, func(b ErrorBreakdown) uint64 { return b.Payload }},
		{errspkg.SchemaViolation, func(b ErrorBreakdown) uint64 { return b.Schema }},
		{errspkg.AllocationFailure, func(b ErrorBreakdown) uint64 { return b.Allocation }},
		{errspkg.HandlerFailure, func(b ErrorBreakdown) uint64 { return b.Handler }},
		{errspkg.DuplicateIdentifier, func(b ErrorBreakdown) uint64 { return b.Other }},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			var b ErrorBreakdown
			b.Record(tt.kind, errors.New("failed"))
			assert.Equal(t, uint64(1), tt.get(b))
			assert.Equal(t, "failed", b.LastError)
		})
	}

	var b ErrorBreakdown
	b.Record(errspkg.KindNone, nil)
	assert.Equal(t, ErrorBreakdown{}, b)
}

func TestLatencyWindowPercentiles(t *testing.T) {
	lw := newLatencyWindow(4)
	for _, ms := range []int{5, 1, 3, 2, 4} {
		lw.Add(time.Duration(ms) * time.Millisecond)
	}

	snap := lw.Snapshot()
	assert.Equal(t, 4, snap.SampleSize)
	assert.Equal(t, int64(4*time.Millisecond), snap.LastNs)
	assert.Equal(t, int64(2500*time.Microsecond), snap.AverageNs)
	assert.Equal(t, int64(2500*time.Microsecond), snap.P50Ns)
}

func TestPercentileBounds(t *testing.T) {
	samples := []int64{10, 20, 30}
	assert.Equal(t, int64(0), percentile(nil, 0.5))
	assert.Equal(t, int64(10), percentile(samples, 0))
	assert.Equal(t, int64(30), percentile(samples, 1))
	assert.Equal(t, int64(20), percentile(samples, 0.5))
	assert.Equal(t, int64(15), percentile(samples, 0.25))
}

func TestRegistrationInfoJSON(t *testing.T) {
	info := RegistrationInfo{
		Identifier: "config/limits",
		Kind:       KindWritableResource,
		Schema:     "config",
	}
	raw, err := jsoncodec.Marshal(info)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"config/limits"`)
	assert.Contains(t, string(raw), `"kind":"writable_resource"`)
	assert.NotContains(t, string(raw), `"operation"`)
}
