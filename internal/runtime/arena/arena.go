// Package arena provides the caller-owned scoped allocator that backs every
// reply and request buffer the diagnostic core produces.
//
// An Arena is a fixed-capacity bump allocator. Buffers handed out by Alloc stay
// valid until the arena is rewound past them or Reset. The arena must outlive
// every registry and handler that references it; the core never extends the
// lifetime of an allocation beyond the arena.
package arena

import (
	"fmt"
	"sync"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

// DefaultSize is used when a configuration leaves the arena size unset.
const DefaultSize = 64 * 1024

// Arena hands out byte slices carved from a single slab.
type Arena struct {
	mu     sync.Mutex
	slab   []byte
	offset int
	peak   int
	failed uint64
}

// Mark records an arena position so a request scope can be rewound.
type Mark struct {
	offset int
}

// Binder is implemented by handlers that want the registry's arena forwarded
// to them at registration time.
type Binder interface {
	BindArena(a *Arena)
}

// New allocates an arena with the given capacity in bytes.
func New(size int) *Arena {
	if size <= 0 {
		size = DefaultSize
	}
	return &Arena{slab: make([]byte, size)}
}

// Alloc returns a zeroed slice of n bytes. The slice has capacity n so appends
// never spill into neighbouring allocations.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", errspkg.ErrAllocationFailure, n)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if n > len(a.slab)-a.offset {
		a.failed++
		return nil, fmt.Errorf("%w: requested %d bytes, %d remaining", errspkg.ErrAllocationFailure, n, len(a.slab)-a.offset)
	}
	buf := a.slab[a.offset : a.offset+n : a.offset+n]
	clear(buf)
	a.offset += n
	if a.offset > a.peak {
		a.peak = a.offset
	}
	return buf, nil
}

// Copy allocates len(src) bytes and copies src into them.
func (a *Arena) Copy(src []byte) ([]byte, error) {
	buf, err := a.Alloc(len(src))
	if err != nil {
		return nil, err
	}
	copy(buf, src)
	return buf, nil
}

// Mark returns the current position.
func (a *Arena) Mark() Mark {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Mark{offset: a.offset}
}

// Rewind releases everything allocated after m. Rewinding to a mark that lies
// ahead of the current position is a no-op.
func (a *Arena) Rewind(m Mark) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m.offset < a.offset {
		a.offset = m.offset
	}
}

// Reset releases every allocation.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = 0
}

// Cap reports the slab capacity.
func (a *Arena) Cap() int {
	return len(a.slab)
}

// Used reports the number of bytes currently allocated.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offset
}

// Remaining reports how many bytes can still be allocated.
func (a *Arena) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slab) - a.offset
}

// Stats is a point-in-time view of arena usage.
type Stats struct {
	Capacity int    `json:"capacity"`
	Used     int    `json:"used"`
	Peak     int    `json:"peak"`
	Failures uint64 `json:"failures"`
}

// Stats returns usage counters for introspection.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{Capacity: len(a.slab), Used: a.offset, Peak: a.peak, Failures: a.failed}
}
