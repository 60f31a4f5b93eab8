package connection

import (
	"sync"

	"github.com/angeloszaimis/kv-failover/internal/store"
)

// Holder lazily materializes a connection to one cluster. The factory runs
// at most once per successful materialization; a failed attempt is not
// cached, so a later Get retries from scratch.
type Holder struct {
	mutex   sync.Mutex
	factory store.Factory
	handle  store.Handle
}

func NewHolder(factory store.Factory) *Holder {
	return &Holder{
		factory: factory,
	}
}

// Get returns the cached handle, invoking the factory on first use.
// Concurrent first calls block until the in-flight factory invocation
// settles; once set, the cached handle never changes.
func (h *Holder) Get() (store.Handle, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.handle != nil {
		return h.handle, nil
	}

	handle, err := h.factory()
	if err != nil {
		return nil, err
	}

	h.handle = handle
	return handle, nil
}

// Established reports whether a handle has been materialized.
func (h *Holder) Established() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.handle != nil
}
