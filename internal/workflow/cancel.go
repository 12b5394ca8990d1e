package workflow

import (
	"context"
	"sync"
)

// cancelRegistry tracks the context cancel handle of each in-flight stage so
// user cancellation can kill the underlying work.
type cancelRegistry struct {
	mu      sync.Mutex
	handles map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{handles: make(map[string]context.CancelFunc)}
}

func (r *cancelRegistry) register(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.handles[id] = cancel
	r.mu.Unlock()
}

// release removes the handle without invoking it.
func (r *cancelRegistry) release(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// cancel invokes and removes the handle for id, reporting whether one was
// registered.
func (r *cancelRegistry) cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
