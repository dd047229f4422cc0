package runtime

import (
	"context"
	"time"

	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
)

// CallContext describes one dispatch call to hooks.
type CallContext struct {
	// Identifier is the registration the call targets.
	Identifier string
	// Action is the adapter call being made.
	Action handlerpkg.Action
	// Metadata carries the request headers supplied by the binding, if any.
	Metadata metadatapkg.Metadata
	// Context is the context the handler runs with.
	Context context.Context
	// StartedAt is when dispatch began.
	StartedAt time.Time
	// Duration is how long the call took (only set in OnDone and OnError).
	Duration time.Duration
}

// DispatchHooks defines callbacks around every dispatch call.
// All hooks are optional - nil hooks are simply not called.
type DispatchHooks struct {
	// OnStart is called before the identifier is resolved.
	OnStart func(call CallContext)

	// OnDone is called when the call succeeded.
	OnDone func(call CallContext)

	// OnError is called when the call failed, including lookup failures.
	OnError func(call CallContext, err error)
}

// Merge combines two DispatchHooks, creating a new DispatchHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnStart: chainCallHooks(h.OnStart, other.OnStart),
		OnDone:  chainCallHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainCallHooks(a, b func(CallContext)) func(CallContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(call CallContext) {
		a(call)
		b(call)
	}
}

func chainErrorHooks(a, b func(CallContext, error)) func(CallContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(call CallContext, err error) {
		a(call, err)
		b(call, err)
	}
}

func (h DispatchHooks) start(call CallContext) {
	if h.OnStart != nil {
		h.OnStart(call)
	}
}

func (h DispatchHooks) finish(call CallContext, err error) {
	if err != nil {
		if h.OnError != nil {
			h.OnError(call, err)
		}
		return
	}
	if h.OnDone != nil {
		h.OnDone(call)
	}
}

// LoggingHooks returns pre-built hooks that log dispatch calls.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	return DispatchHooks{
		OnStart: func(call CallContext) {
			logger.Debug("Dispatch started", loggingpkg.LogFields{
				"identifier": call.Identifier,
				"action":     string(call.Action),
			})
		},
		OnDone: func(call CallContext) {
			logger.Info("Dispatch completed", loggingpkg.LogFields{
				"identifier":  call.Identifier,
				"action":      string(call.Action),
				"duration_ms": call.Duration.Milliseconds(),
			})
		},
		OnError: func(call CallContext, err error) {
			logger.Error("Dispatch failed", err, loggingpkg.LogFields{
				"identifier":  call.Identifier,
				"action":      string(call.Action),
				"duration_ms": call.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that forward dispatch events to simple
// counters.
func MetricsHooks(onStart, onDone, onError func(identifier string, action handlerpkg.Action)) DispatchHooks {
	return DispatchHooks{
		OnStart: func(call CallContext) {
			if onStart != nil {
				onStart(call.Identifier, call.Action)
			}
		},
		OnDone: func(call CallContext) {
			if onDone != nil {
				onDone(call.Identifier, call.Action)
			}
		},
		OnError: func(call CallContext, _ error) {
			if onError != nil {
				onError(call.Identifier, call.Action)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on dispatch errors.
func AlertingHooks(alertFunc func(call CallContext, err error)) DispatchHooks {
	return DispatchHooks{
		OnError: alertFunc,
	}
}
