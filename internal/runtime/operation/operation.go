// Package operation implements the state machine behind SOVD operations and
// their asynchronous executions.
//
// A Runtime owns one operation session. Execute starts the handler either
// inline (SynchronousInvocation) or on a background goroutine
// (AsyncInvocation). Every transition happens under the runtime's mutex, so a
// Status call from another goroutine always observes a consistent snapshot.
package operation

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	idspkg "github.com/drblury/diagflow/internal/runtime/ids"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// Handler performs the operation's work.
type Handler interface {
	Run(ctx context.Context, exec *Execution) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, exec *Execution) error

func (f HandlerFunc) Run(ctx context.Context, exec *Execution) error {
	return f(ctx, exec)
}

// Info is the static description of an operation.
type Info struct {
	Identifier        string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Policy            Policy `json:"policy"`
	ProximityRequired bool   `json:"proximity_required"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ExecutionID   string           `json:"execution_id,omitempty"`
	State         State            `json:"state"`
	Progress      uint8            `json:"progress"`
	Result        payload.Document `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
	StopRequested bool             `json:"stop_requested,omitempty"`
	StartedAt     time.Time        `json:"started_at,omitzero"`
	UpdatedAt     time.Time        `json:"updated_at,omitzero"`

	Err error `json:"-"`
}

// Transition is reported to the Observer after every state change.
type Transition struct {
	Identifier  string
	ExecutionID string
	From        State
	To          State
	Err         error
}

// Observer receives transitions. It runs outside the runtime's lock.
type Observer func(Transition)

// Option customises a Runtime.
type Option func(*Runtime)

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		r.observer = o
	}
}

// Runtime drives one operation session.
type Runtime struct {
	info     Info
	handler  Handler
	observer Observer

	mu            sync.Mutex
	state         State
	exec          *Execution
	progress      uint8
	result        payload.Document
	err           error
	stopRequested bool
	startedAt     time.Time
	updatedAt     time.Time
	done          chan struct{}
}

// New validates the description and returns an Idle runtime.
func New(info Info, h Handler, opts ...Option) (*Runtime, error) {
	if h == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if strings.TrimSpace(info.Identifier) == "" {
		return nil, errspkg.ErrIdentifierRequired
	}
	if !info.Policy.Valid() {
		return nil, fmt.Errorf("%w: operation %s has invalid invocation policy %s", errspkg.ErrInvalidConfiguration, info.Identifier, info.Policy)
	}
	if info.Name == "" {
		info.Name = info.Identifier
	}

	r := &Runtime{info: info, handler: h}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Info returns the operation description. It never touches session state.
func (r *Runtime) Info() Info {
	return r.info
}

// Status returns the current session snapshot; Idle before the first Execute.
func (r *Runtime) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runtime) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         r.state,
		Progress:      r.progress,
		Result:        maps.Clone(r.result),
		Err:           r.err,
		StopRequested: r.stopRequested,
		StartedAt:     r.startedAt,
		UpdatedAt:     r.updatedAt,
	}
	if r.exec != nil {
		s.ExecutionID = r.exec.id
	}
	if r.err != nil {
		s.Error = r.err.Error()
	}
	return s
}

// Execute starts the operation with the given parameters.
//
// Synchronous operations return once the handler finished, so the snapshot is
// Completed, Failed, or Stopped when a Stop arrived meanwhile. Asynchronous
// operations return immediately with the session Executing.
func (r *Runtime) Execute(ctx context.Context, params payload.Document) (Snapshot, error) {
	r.mu.Lock()
	switch {
	case r.state.Running():
		r.mu.Unlock()
		return r.Status(), errspkg.New(errspkg.OperationBusy, "execute", r.info.Identifier, nil)
	case r.state.Terminal():
		state := r.state
		r.mu.Unlock()
		return r.Status(), r.invalid("execute", state)
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if r.info.Policy == AsyncInvocation {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	exec := &Execution{
		rt:     r,
		id:     idspkg.CreateULID(),
		params: maps.Clone(params),
		cancel: cancel,
		halted: runCtx.Done(),
		resume: make(chan struct{}, 1),
	}
	now := time.Now().UTC()
	r.exec = exec
	r.progress = 0
	r.result = nil
	r.err = nil
	r.stopRequested = false
	r.startedAt = now
	r.updatedAt = now
	r.done = make(chan struct{})
	r.state = Executing
	done := r.done
	r.mu.Unlock()

	r.notify(Transition{Identifier: r.info.Identifier, ExecutionID: exec.id, From: Idle, To: Executing})

	if r.info.Policy == AsyncInvocation {
		go r.run(runCtx, exec, done)
		return r.Status(), nil
	}

	r.run(runCtx, exec, done)
	return r.Status(), nil
}

func (r *Runtime) run(ctx context.Context, exec *Execution, done chan struct{}) {
	defer close(done)
	defer exec.cancel()

	err := safeRun(ctx, r.handler, exec)

	r.mu.Lock()
	if r.exec != exec {
		r.mu.Unlock()
		return
	}
	from := r.state
	switch {
	case r.stopRequested:
		r.state = Stopped
	case err != nil:
		r.state = Failed
		r.err = errspkg.Wrap(err, "execute", r.info.Identifier)
	default:
		r.state = Completed
		r.progress = 100
	}
	r.updatedAt = time.Now().UTC()
	t := Transition{Identifier: r.info.Identifier, ExecutionID: exec.id, From: from, To: r.state, Err: r.err}
	r.mu.Unlock()

	r.notify(t)
}

func safeRun(ctx context.Context, h Handler, exec *Execution) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: operation panicked: %v", errspkg.ErrHandlerFailure, rec)
		}
	}()
	return h.Run(ctx, exec)
}

// Resume continues a Suspended execution. Any other state is an invalid
// transition, including a Suspended execution that is already being stopped.
func (r *Runtime) Resume() (Snapshot, error) {
	r.mu.Lock()
	if r.state != Suspended || r.stopRequested {
		state := r.state
		r.mu.Unlock()
		return r.Status(), r.invalid("resume", state)
	}
	r.state = Executing
	r.updatedAt = time.Now().UTC()
	exec := r.exec
	select {
	case exec.resume <- struct{}{}:
	default:
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(Transition{Identifier: r.info.Identifier, ExecutionID: exec.id, From: Suspended, To: Executing})
	return snap, nil
}

// Stop requests cancellation of a running execution. The request is advisory:
// the session reaches Stopped once the handler returns, so callers poll
// Status until it converges.
func (r *Runtime) Stop() (Snapshot, error) {
	r.mu.Lock()
	if !r.state.Running() {
		state := r.state
		r.mu.Unlock()
		return r.Status(), r.invalid("stop", state)
	}
	r.stopRequested = true
	r.updatedAt = time.Now().UTC()
	r.exec.cancel()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	return snap, nil
}

// Reset clears a finished session back to Idle. Resetting an Idle session is a
// no-op; resetting a running one is an invalid transition.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	if r.state.Running() {
		state := r.state
		r.mu.Unlock()
		return r.invalid("reset", state)
	}
	if r.state == Idle {
		r.mu.Unlock()
		return nil
	}
	from := r.state
	id := r.exec.id
	r.clearLocked()
	r.mu.Unlock()

	r.notify(Transition{Identifier: r.info.Identifier, ExecutionID: id, From: from, To: Idle})
	return nil
}

func (r *Runtime) clearLocked() {
	r.state = Idle
	r.exec = nil
	r.progress = 0
	r.result = nil
	r.err = nil
	r.stopRequested = false
	r.startedAt = time.Time{}
	r.updatedAt = time.Time{}
}

// Wait blocks until the current execution finishes or ctx is done.
func (r *Runtime) Wait(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done == nil {
		return r.Status(), nil
	}
	select {
	case <-done:
		return r.Status(), nil
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}

// Close stops any running execution, waits for its handler to return, and
// destroys the session. The wait is bounded by ctx.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Running() {
		r.stopRequested = true
		r.exec.cancel()
	}
	done := r.done
	r.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("operation %s did not stop: %w", r.info.Identifier, ctx.Err())
		}
	}

	r.mu.Lock()
	r.clearLocked()
	r.done = nil
	r.mu.Unlock()
	return nil
}

func (r *Runtime) invalid(call string, from State) error {
	return errspkg.New(errspkg.InvalidTransition, call, r.info.Identifier, fmt.Errorf("%s not allowed from %s", call, from))
}

func (r *Runtime) notify(t Transition) {
	if r.observer != nil {
		r.observer(t)
	}
}
