package dispatcher

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/angeloszaimis/kv-failover/internal/circuitbreaker"
	"github.com/angeloszaimis/kv-failover/internal/store"
)

// Registry hands out one dispatcher per logical cache name, creating it
// lazily with the configured factories and cooldown. All caches share the
// cluster pair but each dispatcher owns its own holders and breaker.
type Registry struct {
	dispatchers *xsync.MapOf[string, *Dispatcher]
	primary     store.Factory
	backup      store.Factory
	cooldown    time.Duration
	opts        []Option
	onCreate    func(name string, d *Dispatcher)
}

type RegistryOption func(*Registry)

// WithOnCreate registers a hook fired once per newly created dispatcher,
// e.g. to start a failover watch goroutine for it.
func WithOnCreate(hook func(name string, d *Dispatcher)) RegistryOption {
	return func(r *Registry) {
		r.onCreate = hook
	}
}

func NewRegistry(primary, backup store.Factory, cooldown time.Duration, regOpts []RegistryOption, opts ...Option) *Registry {
	r := &Registry{
		dispatchers: xsync.NewMapOf[string, *Dispatcher](),
		primary:     primary,
		backup:      backup,
		cooldown:    cooldown,
		opts:        opts,
	}

	for _, opt := range regOpts {
		opt(r)
	}

	return r
}

// Get returns the dispatcher for a cache name, creating it on first use.
// Concurrent first calls for the same name retain exactly one dispatcher.
func (r *Registry) Get(name string) *Dispatcher {
	d, loaded := r.dispatchers.LoadOrCompute(name, func() *Dispatcher {
		return New(name, r.primary, r.backup, r.cooldown, r.opts...)
	})

	if !loaded && r.onCreate != nil {
		r.onCreate(name, d)
	}

	return d
}

// Stats returns the current breaker state per cache name.
func (r *Registry) Stats() map[string]circuitbreaker.State {
	stats := make(map[string]circuitbreaker.State)
	r.dispatchers.Range(func(name string, d *Dispatcher) bool {
		stats[name] = d.State()
		return true
	})
	return stats
}
