package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/operation"
)

func TestDispatchMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics("diag", reg)
	require.NoError(t, m.Register())

	m.ObserveRequest("0xF190", handlerpkg.ActionRead, nil, time.Millisecond)
	m.ObserveRequest("0xF190", handlerpkg.ActionRead, nil, time.Millisecond)
	m.ObserveRequest("0xF190", handlerpkg.ActionRead, errspkg.New(errspkg.AllocationFailure, "read", "0xF190", nil), time.Millisecond)
	m.ObserveRequest("0xF190", handlerpkg.ActionRead, errors.New("plain"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("0xF190", "read", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("0xF190", "read", "allocation_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("0xF190", "read", "handler_failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestDispatchMetrics_ObserveTransition(t *testing.T) {
	m := NewDispatchMetrics("diag", prometheus.NewRegistry())
	require.NoError(t, m.Register())

	steps := []operation.Transition{
		{Identifier: "flash", From: operation.Idle, To: operation.Executing},
		{Identifier: "flash", From: operation.Executing, To: operation.Suspended},
		{Identifier: "flash", From: operation.Suspended, To: operation.Executing},
	}
	for _, step := range steps {
		m.ObserveTransition(step)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsActive.WithLabelValues("flash")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("flash", "executing")))

	m.ObserveTransition(operation.Transition{Identifier: "flash", From: operation.Executing, To: operation.Stopped})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operationsActive.WithLabelValues("flash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("flash", "stopped")))

	m.ObserveTransition(operation.Transition{Identifier: "flash", From: operation.Stopped, To: operation.Idle})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operationsActive.WithLabelValues("flash")))
}

func TestDispatchMetrics_ObserveArena(t *testing.T) {
	m := NewDispatchMetrics("diag", prometheus.NewRegistry())
	require.NoError(t, m.Register())

	a := arenapkg.New(8)
	_, err := a.Alloc(6)
	require.NoError(t, err)
	_, err = a.Alloc(6)
	require.Error(t, err)

	m.ObserveArena(a.Stats())
	assert.Equal(t, 6.0, testutil.ToFloat64(m.arenaUsedBytes))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.arenaPeakBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.arenaFailures))
}

func TestDispatchMetrics_RegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics("diag", reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	again := NewDispatchMetrics("diag", reg)
	assert.NoError(t, again.Register(), "already registered collectors are tolerated")
}

func TestDispatchMetrics_NilIsSafe(t *testing.T) {
	var m *DispatchMetrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("x", handlerpkg.ActionGet, nil, time.Millisecond)
		m.ObserveTransition(operation.Transition{})
		m.ObserveArena(arenapkg.Stats{})
	})
}

func TestDispatchMetrics_Reset(t *testing.T) {
	m := NewDispatchMetrics("", prometheus.NewRegistry())
	require.NoError(t, m.Register())

	m.ObserveRequest("x", handlerpkg.ActionGet, nil, time.Millisecond)
	m.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(m.requestsTotal))
}
