package runtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	configpkg "github.com/drblury/diagflow/internal/runtime/config"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// OperationOptions describe a SOVD operation at registration time.
type OperationOptions struct {
	// Name is a human readable label; defaults to the identifier.
	Name        string
	Description string
	// Policy selects synchronous or asynchronous execution. The zero value
	// means SynchronousInvocation.
	Policy            operation.Policy
	ProximityRequired bool
}

// BuilderOption customises a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger handed to the registry and its dispatchers.
func WithLogger(logger loggingpkg.ServiceLogger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics exports operation transitions and dispatch calls to m.
func WithMetrics(m *DispatchMetrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithConfig applies identifier rules and dispatch settings from cfg.
func WithConfig(cfg configpkg.Config) BuilderOption {
	return func(b *Builder) {
		b.cfg = cfg.WithDefaults()
	}
}

// Builder stages registrations for one entity, or for a legacy namespace when
// the entity is nil. Handlers are wrapped in their adapters as soon as they
// are staged; Build only validates the set and hands it to a Registry. Staging
// errors are collected and reported together by Build.
type Builder struct {
	entity  *Entity
	arena   *arenapkg.Arena
	logger  loggingpkg.ServiceLogger
	metrics *DispatchMetrics
	cfg     configpkg.Config

	staged   []*Registration
	errs     []error
	consumed bool
}

// NewBuilder starts a registration set for entity backed by a. The arena must
// outlive the registry built from it.
func NewBuilder(entity *Entity, a *arenapkg.Arena, opts ...BuilderOption) *Builder {
	b := &Builder{
		entity: entity,
		arena:  a,
		logger: loggingpkg.NopLogger(),
		cfg:    configpkg.Config{}.WithDefaults(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// NewLegacyBuilder starts a registration set without an entity. Only legacy
// handler shapes can be staged on it.
func NewLegacyBuilder(a *arenapkg.Arena, opts ...BuilderOption) *Builder {
	return NewBuilder(nil, a, opts...)
}

// NewBuilderFromConfig validates cfg and derives the entity, arena, and
// metrics from it. Extra options are applied afterwards.
func NewBuilderFromConfig(cfg configpkg.Config, opts ...BuilderOption) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	cfg = cfg.WithDefaults()

	var entity *Entity
	if cfg.EntityName != "" {
		entity = &Entity{Name: cfg.EntityName, Path: cfg.EntityPath}
	}

	base := []BuilderOption{WithConfig(cfg)}
	if cfg.MetricsEnabled {
		metrics := NewDispatchMetrics(cfg.MetricsNamespace, nil)
		if err := metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		base = append(base, WithMetrics(metrics))
	}
	return NewBuilder(entity, arenapkg.New(cfg.ArenaSize), append(base, opts...)...), nil
}

// WithResource stages a read-only data resource.
func (b *Builder) WithResource(id string, h handlerpkg.ResourceReader, opts ResourceOptions) *Builder {
	if !b.admit(id, KindResource, h) {
		return b
	}
	adapter, err := newResourceAdapter(id, h, nil, opts, b.arena)
	b.stage(&Registration{Identifier: id, Kind: KindResource, Category: opts.Category, Schema: opts.Schema, handler: h, resource: adapter}, err)
	return b
}

// WithWritableResource stages a data resource that also accepts Put.
func (b *Builder) WithWritableResource(id string, h handlerpkg.ResourceWriter, opts ResourceOptions) *Builder {
	if !b.admit(id, KindWritableResource, h) {
		return b
	}
	adapter, err := newResourceAdapter(id, h, h, opts, b.arena)
	b.stage(&Registration{Identifier: id, Kind: KindWritableResource, Category: opts.Category, Schema: opts.Schema, handler: h, resource: adapter}, err)
	return b
}

// WithOperation stages an operation with its own session state machine.
func (b *Builder) WithOperation(id string, h handlerpkg.OperationHandler, opts OperationOptions) *Builder {
	if !b.admit(id, KindOperation, h) {
		return b
	}
	policy := opts.Policy
	if policy == 0 {
		policy = operation.SynchronousInvocation
	}
	rt, err := operation.New(operation.Info{
		Identifier:        id,
		Name:              opts.Name,
		Description:       opts.Description,
		Policy:            policy,
		ProximityRequired: opts.ProximityRequired,
	}, h, operation.WithObserver(b.observeTransition))
	b.stage(&Registration{Identifier: id, Kind: KindOperation, handler: h, operation: rt}, err)
	return b
}

// WithRead stages a legacy read handler.
func (b *Builder) WithRead(id string, h handlerpkg.ReadHandler) *Builder {
	if !b.admit(id, KindRead, h) {
		return b
	}
	b.stageLegacy(id, h, &LegacyAdapter{id: id, kind: KindRead, arena: b.arena, read: h}, nil)
	return b
}

// WithWrite stages a legacy write handler.
func (b *Builder) WithWrite(id string, h handlerpkg.WriteHandler) *Builder {
	if !b.admit(id, KindWrite, h) {
		return b
	}
	b.stageLegacy(id, h, &LegacyAdapter{id: id, kind: KindWrite, arena: b.arena, write: h}, nil)
	return b
}

// WithSerializedRead stages a legacy read whose handler returns a record that
// is encoded with schema.
func (b *Builder) WithSerializedRead(id string, schema *payload.Schema, h handlerpkg.RecordReader) *Builder {
	if !b.admit(id, KindSerializedRead, h) {
		return b
	}
	b.stageLegacy(id, h, &LegacyAdapter{id: id, kind: KindSerializedRead, schema: schema, arena: b.arena, recordRead: h}, schema)
	return b
}

// WithSerializedWrite stages a legacy write whose request bytes are decoded
// with schema before the handler sees them.
func (b *Builder) WithSerializedWrite(id string, schema *payload.Schema, h handlerpkg.RecordWriter) *Builder {
	if !b.admit(id, KindSerializedWrite, h) {
		return b
	}
	b.stageLegacy(id, h, &LegacyAdapter{id: id, kind: KindSerializedWrite, schema: schema, arena: b.arena, recordWrite: h}, schema)
	return b
}

// WithRoutine stages a RoutineControl handler.
func (b *Builder) WithRoutine(id string, h handlerpkg.RoutineHandler) *Builder {
	if !b.admit(id, KindRoutine, h) {
		return b
	}
	b.stageLegacy(id, h, &LegacyAdapter{id: id, kind: KindRoutine, arena: b.arena, routine: h}, nil)
	return b
}

// admit runs the checks that must pass before a handler can be wrapped.
// Rejected handlers that were supplied are still kept for release. Once the
// builder is consumed nothing will release them later, so they are released
// here.
func (b *Builder) admit(id string, kind HandlerKind, h any) bool {
	if b.consumed {
		b.errs = append(b.errs, errspkg.ErrBuilderConsumed)
		if isNilHandler(h) {
			return false
		}
		late := &Registration{Identifier: id, Kind: kind, handler: h}
		if err := late.release(); err != nil {
			b.logger.Error("Release of late handler failed", err, loggingpkg.LogFields{"identifier": id})
		}
		b.logger.Debug("Late handler released", loggingpkg.LogFields{
			"identifier": id,
			"kind":       kind.String(),
		})
		return false
	}
	if isNilHandler(h) {
		b.errs = append(b.errs, fmt.Errorf("%s %q: %w", kind, id, errspkg.ErrHandlerRequired))
		return false
	}

	var problems []error
	if strings.TrimSpace(id) == "" {
		problems = append(problems, errspkg.ErrIdentifierRequired)
	} else if err := b.cfg.CheckIdentifier(id); err != nil {
		problems = append(problems, fmt.Errorf("%w: %v", errspkg.ErrInvalidConfiguration, err))
	}
	if kind.SOVD() && b.entity == nil {
		problems = append(problems, errspkg.ErrEntityRequired)
	}
	if b.arena == nil {
		problems = append(problems, errspkg.ErrArenaRequired)
	}
	if len(problems) > 0 {
		b.stage(&Registration{Identifier: id, Kind: kind, handler: h}, errors.Join(problems...))
		return false
	}

	if binder, ok := h.(arenapkg.Binder); ok {
		binder.BindArena(b.arena)
	}
	return true
}

func (b *Builder) stageLegacy(id string, h any, adapter *LegacyAdapter, schema *payload.Schema) {
	var err error
	if (adapter.kind == KindSerializedRead || adapter.kind == KindSerializedWrite) && schema == nil {
		err = errspkg.ErrSchemaRequired
	}
	b.stage(&Registration{Identifier: id, Kind: adapter.kind, Schema: schema, handler: h, legacy: adapter}, err)
}

// stage keeps reg for either the registry or release. A non-nil err marks the
// registration as invalid.
func (b *Builder) stage(reg *Registration, err error) {
	reg.stats = newHandlerStats()
	b.staged = append(b.staged, reg)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s %q: %w", reg.Kind, reg.Identifier, err))
		return
	}
	b.logger.Debug("Handler staged", loggingpkg.LogFields{
		"identifier": reg.Identifier,
		"kind":       reg.Kind.String(),
	})
}

func (b *Builder) observeTransition(t operation.Transition) {
	b.metrics.ObserveTransition(t)
	fields := loggingpkg.LogFields{
		"identifier":   t.Identifier,
		"execution_id": t.ExecutionID,
		"from":         t.From.String(),
		"to":           t.To.String(),
	}
	if t.To == operation.Failed {
		b.logger.Error("Operation failed", t.Err, fields)
		return
	}
	b.logger.Debug("Operation transition", fields)
}

// Build validates the staged set and transfers it to a new Registry. On any
// problem every staged handler is released in reverse order and no registry
// is returned. The builder is consumed either way.
func (b *Builder) Build() (*Registry, error) {
	if b.consumed {
		return nil, errspkg.ErrBuilderConsumed
	}
	b.consumed = true

	problems := slices.Clone(b.errs)
	kind := errspkg.InvalidConfiguration

	seen := make(map[string]struct{}, len(b.staged))
	for _, reg := range b.staged {
		if _, dup := seen[reg.Identifier]; dup {
			kind = errspkg.DuplicateIdentifier
			problems = append(problems, fmt.Errorf("identifier %q registered more than once", reg.Identifier))
			continue
		}
		seen[reg.Identifier] = struct{}{}
	}

	if len(problems) > 0 {
		err := errspkg.New(kind, "build", "", errors.Join(problems...))
		b.logger.Error("Registry build failed", err, loggingpkg.LogFields{"staged": len(b.staged)})
		if releaseErr := releaseAll(b.staged); releaseErr != nil {
			b.logger.Error("Releasing staged handlers failed", releaseErr, nil)
		}
		b.staged = nil
		return nil, err
	}

	reg := newRegistry(b.entity, b.arena, b.logger, b.metrics, b.cfg, b.staged)
	b.staged = nil
	fields := loggingpkg.LogFields{"handlers": reg.Len()}
	if b.entity != nil {
		fields["entity"] = b.entity.Name
	}
	b.logger.Info("Registry built", fields)
	return reg, nil
}

// releaseAll releases registrations in reverse order and joins the failures.
func releaseAll(regs []*Registration) error {
	var errs []error
	for i := len(regs) - 1; i >= 0; i-- {
		if err := regs[i].release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNilHandler(h any) bool {
	if h == nil {
		return true
	}
	switch v := h.(type) {
	case handlerpkg.ReadFunc:
		return v == nil
	case handlerpkg.WriteFunc:
		return v == nil
	case handlerpkg.RecordReadFunc:
		return v == nil
	case handlerpkg.RecordWriteFunc:
		return v == nil
	case handlerpkg.OperationFunc:
		return v == nil
	}
	return false
}
