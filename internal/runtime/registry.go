package runtime

import (
	"context"
	"errors"
	"slices"
	"sync"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	configpkg "github.com/drblury/diagflow/internal/runtime/config"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	"github.com/drblury/diagflow/internal/runtime/operation"
)

// Registry is the immutable identifier table produced by Builder.Build.
// Lookups are safe for concurrent use; Close releases every handler.
type Registry struct {
	entity  *Entity
	arena   *arenapkg.Arena
	logger  loggingpkg.ServiceLogger
	metrics *DispatchMetrics
	cfg     configpkg.Config

	byID  map[string]*Registration
	order []*Registration

	mu     sync.RWMutex
	closed bool
}

// Description is the introspection view of a registry.
type Description struct {
	Entity   *Entity            `json:"entity,omitempty"`
	Handlers []RegistrationInfo `json:"handlers"`
	Arena    arenapkg.Stats     `json:"arena"`
	Closed   bool               `json:"closed"`
}

func newRegistry(entity *Entity, a *arenapkg.Arena, logger loggingpkg.ServiceLogger, metrics *DispatchMetrics, cfg configpkg.Config, regs []*Registration) *Registry {
	r := &Registry{
		entity:  entity,
		arena:   a,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		byID:    make(map[string]*Registration, len(regs)),
		order:   regs,
	}
	for _, reg := range regs {
		r.byID[reg.Identifier] = reg
	}
	return r
}

// Resolve returns the registration for id.
func (r *Registry) Resolve(id string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errspkg.New(errspkg.NotFound, "resolve", id, errspkg.ErrRegistryClosed)
	}
	reg, ok := r.byID[id]
	if !ok {
		return nil, errspkg.New(errspkg.NotFound, "resolve", id, nil)
	}
	return reg, nil
}

// Resource returns the resource adapter registered under id.
func (r *Registry) Resource(id string) (*ResourceAdapter, error) {
	reg, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return reg.asResource()
}

// Operation returns the operation runtime registered under id.
func (r *Registry) Operation(id string) (*operation.Runtime, error) {
	reg, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return reg.asOperation()
}

// Legacy returns the legacy adapter registered under id.
func (r *Registry) Legacy(id string) (*LegacyAdapter, error) {
	reg, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return reg.asLegacy()
}

// Identifiers lists registered identifiers in registration order.
func (r *Registry) Identifiers() []string {
	ids := make([]string, 0, len(r.order))
	for _, reg := range r.order {
		ids = append(ids, reg.Identifier)
	}
	return ids
}

// Len returns the number of registrations.
func (r *Registry) Len() int { return len(r.order) }

// Entity returns the entity the registry serves, nil for legacy registries.
func (r *Registry) Entity() *Entity { return r.entity }

// Arena returns the arena replies are placed in.
func (r *Registry) Arena() *arenapkg.Arena { return r.arena }

// Config returns the configuration the registry was built with.
func (r *Registry) Config() configpkg.Config { return r.cfg }

// Logger returns the registry logger.
func (r *Registry) Logger() loggingpkg.ServiceLogger { return r.logger }

// Metrics returns the metrics sink, nil when metrics are disabled.
func (r *Registry) Metrics() *DispatchMetrics { return r.metrics }

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Describe snapshots every registration and the arena usage.
func (r *Registry) Describe() Description {
	desc := Description{
		Entity:   r.entity,
		Handlers: make([]RegistrationInfo, 0, len(r.order)),
		Closed:   r.Closed(),
	}
	if r.arena != nil {
		desc.Arena = r.arena.Stats()
	}
	for _, reg := range r.order {
		desc.Handlers = append(desc.Handlers, reg.Info())
	}
	return desc
}

// Close stops running operations and releases every handler in reverse
// registration order. Without a deadline on ctx the configured shutdown
// timeout bounds the wait. Only the first call has any effect.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && r.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	for _, reg := range slices.Backward(r.order) {
		if reg.operation == nil {
			continue
		}
		if err := reg.operation.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := releaseAll(r.order); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		r.logger.Error("Registry closed with errors", err, loggingpkg.LogFields{"handlers": len(r.order)})
		return err
	}
	r.logger.Info("Registry closed", loggingpkg.LogFields{"handlers": len(r.order)})
	return nil
}
