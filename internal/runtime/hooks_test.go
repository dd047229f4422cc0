package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
)

func TestDispatchHooks_OnStart(t *testing.T) {
	var captured CallContext
	reg := mustBuild(t, NewLegacyBuilder(arenapkg.New(64)).
		WithRead("0xF190", &releasingReader{data: []byte{1}}))
	d := mustDispatcher(t, reg, WithHooks(DispatchHooks{
		OnStart: func(call CallContext) { captured = call },
	}))

	_, err := d.ReadData(context.Background(), "0xF190")
	require.NoError(t, err)
	assert.Equal(t, "0xF190", captured.Identifier)
	assert.Equal(t, handlerpkg.ActionRead, captured.Action)
	assert.False(t, captured.StartedAt.IsZero())
	assert.Zero(t, captured.Duration)
	assert.NotNil(t, captured.Context)
}

func TestDispatchHooks_OnDoneAndOnError(t *testing.T) {
	boom := errors.New("boom")
	var done, failed []string
	var hookErr error
	reg := mustBuild(t, NewLegacyBuilder(arenapkg.New(64)).
		WithWrite("0xF191", handlerpkg.WriteFunc(func(_ context.Context, data []byte) error {
			if len(data) == 0 {
				return boom
			}
			return nil
		})))
	d := mustDispatcher(t, reg, WithHooks(DispatchHooks{
		OnDone: func(call CallContext) { done = append(done, call.Identifier) },
		OnError: func(call CallContext, err error) {
			failed = append(failed, call.Identifier)
			hookErr = err
		},
	}))

	require.NoError(t, d.WriteData(context.Background(), "0xF191", []byte{1}))
	require.Error(t, d.WriteData(context.Background(), "0xF191", nil))

	assert.Equal(t, []string{"0xF191"}, done)
	assert.Equal(t, []string{"0xF191"}, failed)
	assert.ErrorIs(t, hookErr, boom)
}

func TestDispatchHooks_Merge(t *testing.T) {
	var order []string
	first := DispatchHooks{
		OnStart: func(CallContext) { order = append(order, "first-start") },
		OnError: func(CallContext, error) { order = append(order, "first-error") },
	}
	second := DispatchHooks{
		OnStart: func(CallContext) { order = append(order, "second-start") },
		OnDone:  func(CallContext) { order = append(order, "second-done") },
	}

	merged := first.Merge(second)
	merged.start(CallContext{})
	merged.finish(CallContext{}, nil)
	merged.finish(CallContext{}, errors.New("failed"))

	assert.Equal(t, []string{"first-start", "second-start", "second-done", "first-error"}, order)
}

func TestDispatchHooks_NilHooksAreSkipped(t *testing.T) {
	var hooks DispatchHooks
	assert.NotPanics(t, func() {
		hooks.start(CallContext{})
		hooks.finish(CallContext{}, nil)
		hooks.finish(CallContext{}, errors.New("ignored"))
	})
}

func TestLoggingHooks(t *testing.T) {
	logger := &recordingLogger{}
	hooks := LoggingHooks(logger)

	call := CallContext{Identifier: "0xF190", Action: handlerpkg.ActionRead, Duration: 3 * time.Millisecond}
	hooks.start(call)
	hooks.finish(call, nil)
	hooks.finish(call, errors.New("denied"))

	assert.Equal(t, []string{"Dispatch started"}, logger.messages("debug"))
	assert.Equal(t, []string{"Dispatch completed"}, logger.messages("info"))
	assert.Equal(t, []string{"Dispatch failed"}, logger.messages("error"))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, int64(3), logger.entries[1].fields["duration_ms"])
	assert.EqualError(t, logger.entries[2].err, "denied")
}

func TestAlertingHooks(t *testing.T) {
	var alerted []string
	hooks := AlertingHooks(func(call CallContext, err error) {
		alerted = append(alerted, call.Identifier+": "+err.Error())
	})

	hooks.finish(CallContext{Identifier: "selftest"}, nil)
	hooks.finish(CallContext{Identifier: "selftest"}, errors.New("timeout"))

	assert.Equal(t, []string{"selftest: timeout"}, alerted)
	assert.Nil(t, hooks.OnStart)
}
