package operation

import (
	"context"
	"maps"
	"time"

	"github.com/drblury/diagflow/internal/runtime/payload"
)

// Execution is the handle an operation handler uses to talk back to its
// session. It is only valid while the handler's Run call is active.
type Execution struct {
	rt     *Runtime
	id     string
	params payload.Document
	cancel context.CancelFunc
	halted <-chan struct{}
	resume chan struct{}
}

// ID returns the execution identifier assigned at Execute time.
func (e *Execution) ID() string {
	return e.id
}

// Parameters returns the document passed to Execute.
func (e *Execution) Parameters() payload.Document {
	return maps.Clone(e.params)
}

// Report publishes progress in percent. Values above 100 are clamped.
func (e *Execution) Report(progress uint8) {
	progress = min(progress, 100)
	r := e.rt
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec != e {
		return
	}
	r.progress = progress
	r.updatedAt = time.Now().UTC()
}

// SetResult stores the document returned by later Status calls.
func (e *Execution) SetResult(doc payload.Document) {
	r := e.rt
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exec != e {
		return
	}
	r.result = maps.Clone(doc)
	r.updatedAt = time.Now().UTC()
}

// StopRequested reports whether Stop was called for this execution.
func (e *Execution) StopRequested() bool {
	r := e.rt
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec == e && r.stopRequested
}

// Suspend parks the execution until Resume is called. It returns the context
// error when the execution is stopped or ctx ends first; handlers should
// return promptly in that case.
func (e *Execution) Suspend(ctx context.Context) error {
	r := e.rt
	r.mu.Lock()
	if r.exec != e || r.stopRequested {
		r.mu.Unlock()
		return context.Canceled
	}
	if r.state != Executing {
		state := r.state
		r.mu.Unlock()
		return r.invalid("suspend", state)
	}
	r.state = Suspended
	r.updatedAt = time.Now().UTC()
	r.mu.Unlock()

	r.notify(Transition{Identifier: r.info.Identifier, ExecutionID: e.id, From: Executing, To: Suspended})

	select {
	case <-e.resume:
		return nil
	case <-e.halted:
		return context.Canceled
	case <-ctx.Done():
		e.abandonSuspend()
		return ctx.Err()
	}
}

// abandonSuspend puts a session parked by Suspend back to Executing when the
// wait ended without Resume, since the handler keeps running.
func (e *Execution) abandonSuspend() {
	r := e.rt
	r.mu.Lock()
	if r.exec != e || r.state != Suspended {
		r.mu.Unlock()
		return
	}
	select {
	case <-e.resume:
	default:
	}
	r.state = Executing
	r.updatedAt = time.Now().UTC()
	r.mu.Unlock()

	r.notify(Transition{Identifier: r.info.Identifier, ExecutionID: e.id, From: Suspended, To: Executing})
}
