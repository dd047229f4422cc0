package runtime

import (
	"fmt"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// Entity is the addressable diagnostic target resources and operations are
// registered against. The caller owns it; registries only keep the pointer.
type Entity struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// HandlerKind tells which adapter a registration is served by.
type HandlerKind uint8

const (
	KindResource HandlerKind = iota + 1
	KindWritableResource
	KindOperation
	KindRead
	KindWrite
	KindSerializedRead
	KindSerializedWrite
	KindRoutine
)

var handlerKindNames = map[HandlerKind]string{
	KindResource:         "resource",
	KindWritableResource: "writable_resource",
	KindOperation:        "operation",
	KindRead:             "read",
	KindWrite:            "write",
	KindSerializedRead:   "serialized_read",
	KindSerializedWrite:  "serialized_write",
	KindRoutine:          "routine",
}

func (k HandlerKind) String() string {
	if name, ok := handlerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("handler_kind(%d)", uint8(k))
}

func (k HandlerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SOVD reports whether the kind belongs to the resource/operation protocol and
// therefore needs an entity.
func (k HandlerKind) SOVD() bool {
	return k == KindResource || k == KindWritableResource || k == KindOperation
}

// Registration is one identifier bound to its adapter. Registries own their
// registrations; callers only read them.
type Registration struct {
	Identifier string
	Kind       HandlerKind
	Category   string
	Schema     *payload.Schema

	handler   any
	resource  *ResourceAdapter
	operation *operation.Runtime
	legacy    *LegacyAdapter
	stats     *HandlerStats
}

// Handler returns the user handler behind the registration.
func (r *Registration) Handler() any {
	return r.handler
}

// Stats returns the live call statistics of the registration.
func (r *Registration) Stats() *HandlerStats {
	return r.stats
}

func (r *Registration) asResource() (*ResourceAdapter, error) {
	if r.resource == nil {
		return nil, r.mismatch("resource")
	}
	return r.resource, nil
}

func (r *Registration) asOperation() (*operation.Runtime, error) {
	if r.operation == nil {
		return nil, r.mismatch("operation")
	}
	return r.operation, nil
}

func (r *Registration) asLegacy() (*LegacyAdapter, error) {
	if r.legacy == nil {
		return nil, r.mismatch("legacy service")
	}
	return r.legacy, nil
}

func (r *Registration) mismatch(want string) error {
	return errspkg.New(errspkg.InvalidConfiguration, "resolve", r.Identifier,
		fmt.Errorf("%w: want %s, registered as %s", errspkg.ErrKindMismatch, want, r.Kind))
}

// release frees the user handler if it holds resources.
func (r *Registration) release() error {
	releaser, ok := r.handler.(handlerpkg.Releaser)
	if !ok {
		return nil
	}
	if err := safeCall(releaser.Release); err != nil {
		return fmt.Errorf("release %s: %w", r.Identifier, err)
	}
	return nil
}

// Info describes the registration for introspection.
func (r *Registration) Info() RegistrationInfo {
	info := RegistrationInfo{
		Identifier: r.Identifier,
		Kind:       r.Kind,
		Category:   r.Category,
		Stats:      r.stats.Snapshot(),
	}
	if r.Schema != nil {
		info.Schema = r.Schema.Name()
	}
	if r.operation != nil {
		opInfo := r.operation.Info()
		status := r.operation.Status()
		info.Operation = &opInfo
		info.State = status.State.String()
	}
	return info
}

// safeCall runs fn and turns a panic into a HandlerFailure error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: handler panicked: %v", errspkg.ErrHandlerFailure, rec)
		}
	}()
	return fn()
}
