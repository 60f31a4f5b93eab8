package dispatcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/kv-failover/internal/circuitbreaker"
	"github.com/angeloszaimis/kv-failover/internal/connection"
	"github.com/angeloszaimis/kv-failover/internal/store"
)

// Action is a store operation executed against whichever cluster the
// dispatcher picks. The same closure may run against primary or backup,
// so it must be safe to re-execute against either.
type Action func(h store.Handle) (any, error)

// Tier identifies which cluster served a dispatched action.
type Tier string

const (
	TierPrimary Tier = "primary"
	TierBackup  Tier = "backup"
)

// Dispatcher routes store actions to the primary cluster and substitutes
// the backup when the breaker is open or when primary fails with a
// transient-connectivity error. One instance serves one cache name for
// the process lifetime.
type Dispatcher struct {
	name          string
	primary       *connection.Holder
	backup        *connection.Holder
	stateMutex    sync.Mutex
	breaker       *circuitbreaker.Breaker
	classify      store.Classifier
	logger        *slog.Logger
	threshold     int
	onStateChange func(from, to circuitbreaker.State)
}

type Option func(*Dispatcher)

// WithClassifier overrides the transient-error classification.
func WithClassifier(classify store.Classifier) Option {
	return func(d *Dispatcher) {
		d.classify = classify
	}
}

// WithLogger sets the logger used for failover events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithThreshold sets how many qualifying failures open the breaker.
// The default of 1 fails over on the first transient error.
func WithThreshold(threshold int) Option {
	return func(d *Dispatcher) {
		d.threshold = threshold
	}
}

// WithOnStateChange registers a hook fired on every breaker transition.
// The hook runs on the calling goroutine and must not call back into
// the dispatcher.
func WithOnStateChange(hook func(from, to circuitbreaker.State)) Option {
	return func(d *Dispatcher) {
		d.onStateChange = hook
	}
}

func New(name string, primary, backup store.Factory, cooldown time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		name:      name,
		primary:   connection.NewHolder(primary),
		backup:    connection.NewHolder(backup),
		classify:  store.IsTransient,
		logger:    slog.Default(),
		threshold: 1,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.breaker = circuitbreaker.New(d.threshold, cooldown)
	return d
}

// Execute runs action against primary, falling back to backup when the
// breaker is open or primary fails with a transient-connectivity error.
// A transient primary failure is absorbed; the caller sees only the
// backup's outcome. Business failures propagate untouched and never
// move the breaker or touch backup.
func (d *Dispatcher) Execute(action Action) (any, error) {
	result, _, err := d.Dispatch(action)
	return result, err
}

// Dispatch is Execute plus the tier that actually served the action.
// Callers surfacing the serving cluster (response headers, metrics) need
// the tier directly: with a threshold above one a fallback can serve from
// backup while the breaker is still closed, so IsFailedOver cannot tell.
func (d *Dispatcher) Dispatch(action Action) (any, Tier, error) {
	if !d.allow() {
		result, err := d.executeBackup(action)
		return result, TierBackup, err
	}

	result, err := d.executePrimary(action)
	if err == nil {
		d.record(true)
		return result, TierPrimary, nil
	}

	if !d.classify(err) {
		return nil, TierPrimary, err
	}

	d.record(false)
	d.logger.Warn("Primary cluster unavailable, serving from backup",
		slog.String("cache", d.name),
		slog.Any("err", err))

	result, err = d.executeBackup(action)
	return result, TierBackup, err
}

// IsFailedOver reports whether the breaker is currently open. It is
// informational only and never mutates state.
func (d *Dispatcher) IsFailedOver() bool {
	return d.breaker.State() == circuitbreaker.StateOpen
}

// State returns the current breaker state.
func (d *Dispatcher) State() circuitbreaker.State {
	return d.breaker.State()
}

// Name returns the cache name this dispatcher serves.
func (d *Dispatcher) Name() string {
	return d.name
}

// Transient reports whether err falls in the connectivity class this
// dispatcher fails over on, using the configured classifier.
func (d *Dispatcher) Transient(err error) bool {
	return d.classify(err)
}

func (d *Dispatcher) executePrimary(action Action) (any, error) {
	// A factory error here flows through the same classification as an
	// action error: a socket error while connecting must open the breaker.
	handle, err := d.primary.Get()
	if err != nil {
		return nil, err
	}
	return action(handle)
}

func (d *Dispatcher) executeBackup(action Action) (any, error) {
	handle, err := d.backup.Get()
	if err != nil {
		return nil, err
	}
	return action(handle)
}

// stateMutex serializes allow/record: every breaker mutation goes through
// them, so the from/to pairs handed to notify stay consistent under
// concurrent dispatch.
func (d *Dispatcher) allow() bool {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	before := d.breaker.State()
	allowed := d.breaker.Allow()
	d.notify(before, d.breaker.State())
	return allowed
}

func (d *Dispatcher) record(success bool) {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	before := d.breaker.State()
	if success {
		d.breaker.RecordSuccess()
	} else {
		d.breaker.RecordFailure()
	}
	d.notify(before, d.breaker.State())
}

func (d *Dispatcher) notify(from, to circuitbreaker.State) {
	if from == to {
		return
	}
	d.logger.Info("Breaker state changed",
		slog.String("cache", d.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if d.onStateChange != nil {
		d.onStateChange(from, to)
	}
}

// Run executes a typed action through d, avoiding closures that capture
// return values by hand.
func Run[T any](d *Dispatcher, action func(h store.Handle) (T, error)) (T, error) {
	result, err := d.Execute(func(h store.Handle) (any, error) {
		return action(h)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}
