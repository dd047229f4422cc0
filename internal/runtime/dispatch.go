package runtime

import (
	"context"
	"encoding/hex"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

const tracerName = "github.com/drblury/diagflow"

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHooks adds hooks run around every call. Repeated options are merged.
func WithHooks(h DispatchHooks) DispatcherOption {
	return func(d *Dispatcher) {
		d.hooks = d.hooks.Merge(h)
	}
}

// WithTracerProvider traces dispatch calls with tp regardless of the
// TracingEnabled setting.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithPayloadLogging overrides the LogPayloads setting.
func WithPayloadLogging(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.logPayloads = enabled
	}
}

// Dispatcher is the entry point bindings call into. It resolves identifiers
// against a Registry and runs the matching adapter call inside a span, with
// hooks, statistics, metrics, and logging around it.
//
// Replies that live in the arena stay valid until the binding rewinds or
// resets it; scoping arena use per request is left to the binding.
type Dispatcher struct {
	reg         *Registry
	hooks       DispatchHooks
	tracer      trace.Tracer
	logger      loggingpkg.ServiceLogger
	metrics     *DispatchMetrics
	logPayloads bool
}

// NewDispatcher serves reg. Tracing uses the global otel provider when the
// registry config enables it.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if reg == nil {
		return nil, errspkg.ErrConfigRequired
	}

	cfg := reg.Config()
	d := &Dispatcher{
		reg:         reg,
		tracer:      noop.NewTracerProvider().Tracer(tracerName),
		logger:      reg.Logger(),
		metrics:     reg.Metrics(),
		logPayloads: cfg.LogPayloads,
	}
	if cfg.TracingEnabled {
		d.tracer = otel.Tracer(tracerName)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Registry returns the registry the dispatcher serves.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// ReadData answers a legacy read request.
func (d *Dispatcher) ReadData(ctx context.Context, id string) ([]byte, error) {
	return dispatch(ctx, d, id, handlerpkg.ActionRead, nil, func(ctx context.Context, reg *Registration) ([]byte, error) {
		adapter, err := reg.asLegacy()
		if err != nil {
			return nil, err
		}
		return adapter.Read(ctx)
	})
}

// WriteData delivers a legacy write request.
func (d *Dispatcher) WriteData(ctx context.Context, id string, data []byte) error {
	_, err := dispatch(ctx, d, id, handlerpkg.ActionWrite, data, func(ctx context.Context, reg *Registration) (struct{}, error) {
		adapter, err := reg.asLegacy()
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, adapter.Write(ctx, data)
	})
	return err
}

// RoutineControl runs one RoutineControl sub-function.
func (d *Dispatcher) RoutineControl(ctx context.Context, id string, sub RoutineSubFunction, req []byte) ([]byte, error) {
	return dispatch(ctx, d, id, routineAction(sub), req, func(ctx context.Context, reg *Registration) ([]byte, error) {
		adapter, err := reg.asLegacy()
		if err != nil {
			return nil, err
		}
		return adapter.Routine(ctx, sub, req)
	})
}

func routineAction(sub RoutineSubFunction) handlerpkg.Action {
	switch sub {
	case RoutineStart:
		return handlerpkg.ActionRoutineStart
	case RoutineStop:
		return handlerpkg.ActionRoutineStop
	case RoutineRequestResults:
		return handlerpkg.ActionRoutineResults
	default:
		return handlerpkg.Action("routine_" + sub.String())
	}
}

// GetData reads a resource as a document.
func (d *Dispatcher) GetData(ctx context.Context, id string) (payload.Document, error) {
	return dispatch(ctx, d, id, handlerpkg.ActionGet, nil, func(ctx context.Context, reg *Registration) (payload.Document, error) {
		adapter, err := reg.asResource()
		if err != nil {
			return nil, err
		}
		return adapter.Get(ctx)
	})
}

// GetDataJSON reads a resource as JSON placed in the arena.
func (d *Dispatcher) GetDataJSON(ctx context.Context, id string) ([]byte, error) {
	return dispatch(ctx, d, id, handlerpkg.ActionGet, nil, func(ctx context.Context, reg *Registration) ([]byte, error) {
		adapter, err := reg.asResource()
		if err != nil {
			return nil, err
		}
		return adapter.GetJSON(ctx)
	})
}

// PutData writes a resource.
func (d *Dispatcher) PutData(ctx context.Context, id string, raw []byte) error {
	_, err := dispatch(ctx, d, id, handlerpkg.ActionPut, raw, func(ctx context.Context, reg *Registration) (struct{}, error) {
		adapter, err := reg.asResource()
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, adapter.Put(ctx, raw)
	})
	return err
}

// GetDataProto reads a resource as a serialized google.protobuf.Struct placed
// in the arena.
func (d *Dispatcher) GetDataProto(ctx context.Context, id string) ([]byte, error) {
	return dispatch(ctx, d, id, handlerpkg.ActionGet, nil, func(ctx context.Context, reg *Registration) ([]byte, error) {
		adapter, err := reg.asResource()
		if err != nil {
			return nil, err
		}
		return adapter.GetProto(ctx)
	})
}

// PutDataProto writes a resource from a serialized google.protobuf.Struct.
func (d *Dispatcher) PutDataProto(ctx context.Context, id string, raw []byte) error {
	_, err := dispatch(ctx, d, id, handlerpkg.ActionPut, raw, func(ctx context.Context, reg *Registration) (struct{}, error) {
		adapter, err := reg.asResource()
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, adapter.PutProto(ctx, raw)
	})
	return err
}

// ExecuteOperation starts an operation. Asynchronous operations keep running
// after ctx is cancelled; use StopOperation to end them.
func (d *Dispatcher) ExecuteOperation(ctx context.Context, id string, params payload.Document) (operation.Snapshot, error) {
	return d.withOperation(ctx, id, handlerpkg.ActionExecute, func(ctx context.Context, rt *operation.Runtime) (operation.Snapshot, error) {
		return rt.Execute(ctx, params)
	})
}

// OperationStatus returns the operation's session snapshot.
func (d *Dispatcher) OperationStatus(ctx context.Context, id string) (operation.Snapshot, error) {
	return d.withOperation(ctx, id, handlerpkg.ActionStatus, func(_ context.Context, rt *operation.Runtime) (operation.Snapshot, error) {
		return rt.Status(), nil
	})
}

// ResumeOperation resumes a suspended execution.
func (d *Dispatcher) ResumeOperation(ctx context.Context, id string) (operation.Snapshot, error) {
	return d.withOperation(ctx, id, handlerpkg.ActionResume, func(_ context.Context, rt *operation.Runtime) (operation.Snapshot, error) {
		return rt.Resume()
	})
}

// StopOperation asks a running execution to stop.
func (d *Dispatcher) StopOperation(ctx context.Context, id string) (operation.Snapshot, error) {
	return d.withOperation(ctx, id, handlerpkg.ActionStop, func(_ context.Context, rt *operation.Runtime) (operation.Snapshot, error) {
		return rt.Stop()
	})
}

// ResetOperation returns a finished operation to Idle.
func (d *Dispatcher) ResetOperation(ctx context.Context, id string) error {
	_, err := d.withOperation(ctx, id, handlerpkg.ActionReset, func(_ context.Context, rt *operation.Runtime) (operation.Snapshot, error) {
		if err := rt.Reset(); err != nil {
			return operation.Snapshot{}, err
		}
		return rt.Status(), nil
	})
	return err
}

// OperationInfo returns the operation description.
func (d *Dispatcher) OperationInfo(ctx context.Context, id string) (operation.Info, error) {
	return dispatch(ctx, d, id, handlerpkg.ActionInfo, nil, func(_ context.Context, reg *Registration) (operation.Info, error) {
		rt, err := reg.asOperation()
		if err != nil {
			return operation.Info{}, err
		}
		return rt.Info(), nil
	})
}

func (d *Dispatcher) withOperation(ctx context.Context, id string, action handlerpkg.Action, fn func(context.Context, *operation.Runtime) (operation.Snapshot, error)) (operation.Snapshot, error) {
	return dispatch(ctx, d, id, action, nil, func(ctx context.Context, reg *Registration) (operation.Snapshot, error) {
		rt, err := reg.asOperation()
		if err != nil {
			return operation.Snapshot{}, err
		}
		return fn(ctx, rt)
	})
}

// dispatch resolves id and runs fn with the request context attached. Every
// outcome, lookup failures included, goes through hooks, metrics, and the span.
func dispatch[T any](ctx context.Context, d *Dispatcher, id string, action handlerpkg.Action, body []byte, fn func(context.Context, *Registration) (T, error)) (T, error) {
	started := time.Now()

	ctx, span := d.tracer.Start(ctx, "diagflow."+string(action),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("diag.identifier", id),
			attribute.String("diag.action", string(action)),
		),
	)
	defer span.End()

	md := metadatapkg.Metadata{}
	if rc, ok := handlerpkg.RequestFromContext(ctx); ok {
		md = rc.CloneMetadata()
	}
	md = md.With(handlerpkg.MetadataKeyIdentifier, id).With(handlerpkg.MetadataKeyAction, string(action))
	if sc := span.SpanContext(); sc.IsValid() {
		md = md.With(handlerpkg.MetadataKeyTraceID, sc.TraceID().String()).
			With(handlerpkg.MetadataKeySpanID, sc.SpanID().String())
	}

	fields := loggingpkg.LogFields{"identifier": id, "action": string(action)}
	if cid := md[handlerpkg.MetadataKeyCorrelationID]; cid != "" {
		fields["correlation_id"] = cid
	}
	logger := d.logger.With(fields)
	ctx = handlerpkg.WithRequestContext(ctx, handlerpkg.RequestContext{
		Identifier: id,
		Action:     action,
		Metadata:   md,
		Logger:     logger,
	})

	call := CallContext{
		Identifier: id,
		Action:     action,
		Metadata:   md,
		Context:    ctx,
		StartedAt:  started,
	}
	d.hooks.start(call)
	if d.logPayloads && len(body) > 0 {
		logger.Debug("Request payload", loggingpkg.LogFields{"payload": hex.EncodeToString(body)})
	}

	var out T
	reg, err := d.reg.Resolve(id)
	if err == nil {
		reg.stats.onCallStart()
		out, err = fn(ctx, reg)
		err = errspkg.Wrap(err, string(action), id)
		reg.stats.onCallFinish(time.Since(started), err)
	}
	call.Duration = time.Since(started)

	if err != nil {
		kind := errspkg.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		span.SetAttributes(attribute.String("diag.error_kind", kind.String()))
		logger.Error("Dispatch failed", err, loggingpkg.LogFields{
			"kind":        kind.String(),
			"duration_ms": call.Duration.Milliseconds(),
		})
	} else if d.logPayloads {
		if raw, ok := any(out).([]byte); ok {
			logger.Debug("Reply payload", loggingpkg.LogFields{"payload": hex.EncodeToString(raw)})
		}
	}

	d.hooks.finish(call, err)
	d.metrics.ObserveRequest(id, action, err, call.Duration)
	if a := d.reg.Arena(); a != nil {
		d.metrics.ObserveArena(a.Stats())
	}
	return out, err
}
