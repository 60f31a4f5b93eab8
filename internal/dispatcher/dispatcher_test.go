package dispatcher_test

import (
	"errors"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/kv-failover/internal/circuitbreaker"
	"github.com/angeloszaimis/kv-failover/internal/dispatcher"
	"github.com/angeloszaimis/kv-failover/internal/store"
	"github.com/angeloszaimis/kv-failover/internal/store/memory"
)

func TestDispatcher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dispatcher Suite")
}

const cooldown = 100 * time.Millisecond

// failingHandle fails every operation with a fixed error.
type failingHandle struct {
	err error
}

func (f failingHandle) Add(string, []byte) error    { return f.err }
func (f failingHandle) Read(string) ([]byte, error) { return nil, f.err }
func (f failingHandle) Update(string, []byte) error { return f.err }

// flakyHandle fails the first n operations, then delegates.
type flakyHandle struct {
	mutex     sync.Mutex
	remaining int
	err       error
	inner     store.Handle
}

func (f *flakyHandle) failing() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.remaining > 0 {
		f.remaining--
		return true
	}
	return false
}

func (f *flakyHandle) Add(key string, value []byte) error {
	if f.failing() {
		return f.err
	}
	return f.inner.Add(key, value)
}

func (f *flakyHandle) Read(key string) ([]byte, error) {
	if f.failing() {
		return nil, f.err
	}
	return f.inner.Read(key)
}

func (f *flakyHandle) Update(key string, value []byte) error {
	if f.failing() {
		return f.err
	}
	return f.inner.Update(key, value)
}

func factoryFor(h store.Handle) store.Factory {
	return func() (store.Handle, error) {
		return h, nil
	}
}

func readAction(key string) dispatcher.Action {
	return func(h store.Handle) (any, error) {
		return h.Read(key)
	}
}

func addAction(key, value string) dispatcher.Action {
	return func(h store.Handle) (any, error) {
		return nil, h.Add(key, []byte(value))
	}
}

var _ = Describe("Dispatcher", func() {
	var (
		primaryStore *memory.Store
		backupStore  *memory.Store
	)

	BeforeEach(func() {
		primaryStore = memory.New()
		backupStore = memory.New()
	})

	Describe("Execute with a healthy primary", func() {
		It("should serve from primary and stay closed", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())

			Expect(d.IsFailedOver()).To(BeFalse())
			Expect(primaryStore.Len()).To(Equal(1))
			Expect(backupStore.Len()).To(Equal(0))
		})
	})

	Describe("Execute with a transient primary failure", func() {
		It("should open the breaker and return the backup's result", func() {
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(backupStore),
				cooldown)

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())

			Expect(d.IsFailedOver()).To(BeTrue())
			Expect(d.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(backupStore.Len()).To(Equal(1))
		})

		It("should return a result identical to calling backup directly", func() {
			Expect(backupStore.Add("k", []byte("backup-value"))).To(Succeed())

			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(backupStore),
				cooldown)

			result, err := d.Execute(readAction("k"))
			Expect(err).NotTo(HaveOccurred())

			direct, directErr := backupStore.Read("k")
			Expect(directErr).NotTo(HaveOccurred())
			Expect(result).To(Equal(any(direct)))
		})

		It("should absorb the primary error even when backup also fails", func() {
			backupErr := errors.New("backup on fire")
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(failingHandle{err: backupErr}),
				cooldown)

			_, err := d.Execute(readAction("k"))
			Expect(err).To(MatchError(backupErr))
			Expect(err).NotTo(MatchError(store.ErrUnavailable))
		})

		It("should treat a transient primary factory error as a failure", func() {
			d := dispatcher.New("orders",
				func() (store.Handle, error) {
					return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
				},
				factoryFor(backupStore),
				cooldown)

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsFailedOver()).To(BeTrue())
			Expect(backupStore.Len()).To(Equal(1))
		})
	})

	Describe("Execute with a business failure", func() {
		It("should propagate the error without failing over", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			_, err := d.Execute(readAction("missing"))
			Expect(err).To(MatchError(store.ErrKeyNotFound))

			Expect(d.IsFailedOver()).To(BeFalse())
			Expect(d.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(backupStore.Len()).To(Equal(0))
		})

		It("should not touch backup at all", func() {
			var backupCalls int
			d := dispatcher.New("orders", factoryFor(primaryStore),
				func() (store.Handle, error) {
					backupCalls++
					return backupStore, nil
				},
				cooldown)

			Expect(primaryStore.Add("k", []byte("v"))).To(Succeed())
			_, err := d.Execute(addAction("k", "v"))
			Expect(err).To(MatchError(store.ErrKeyExists))
			Expect(backupCalls).To(Equal(0))
		})
	})

	Describe("Cooldown and recovery", func() {
		var (
			primary *flakyHandle
			d       *dispatcher.Dispatcher
		)

		BeforeEach(func() {
			primary = &flakyHandle{remaining: 1, err: store.ErrUnavailable, inner: primaryStore}
			d = dispatcher.New("orders", factoryFor(primary), factoryFor(backupStore), cooldown)

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsFailedOver()).To(BeTrue())
		})

		It("should serve backup only while the cooldown runs", func() {
			_, err := d.Execute(readAction("k"))
			Expect(err).NotTo(HaveOccurred())

			// Primary never saw the write or the read.
			Expect(primaryStore.Len()).To(Equal(0))
			Expect(d.IsFailedOver()).To(BeTrue())
		})

		It("should probe primary after the cooldown and close on success", func() {
			time.Sleep(cooldown + 50*time.Millisecond)

			_, err := d.Execute(addAction("fresh", "v"))
			Expect(err).NotTo(HaveOccurred())

			Expect(d.IsFailedOver()).To(BeFalse())
			Expect(d.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(primaryStore.Len()).To(Equal(1))

			// Subsequent calls keep using primary.
			_, err = d.Execute(readAction("fresh"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reopen and restart the cooldown when the probe fails", func() {
			primary.mutex.Lock()
			primary.remaining = 1
			primary.mutex.Unlock()

			time.Sleep(cooldown + 50*time.Millisecond)

			_, err := d.Execute(readAction("k"))
			Expect(err).NotTo(HaveOccurred()) // Served by backup
			Expect(d.IsFailedOver()).To(BeTrue())

			// Fresh cooldown window: still backup only.
			_, err = d.Execute(readAction("k"))
			Expect(err).NotTo(HaveOccurred())
			Expect(primaryStore.Len()).To(Equal(0))
		})
	})

	Describe("End-to-end failover scenario", func() {
		It("should write to backup, then recover to primary after cooldown", func() {
			attempts := 0
			primaryFactory := func() (store.Handle, error) {
				attempts++
				if attempts == 1 {
					return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
				}
				return primaryStore, nil
			}

			d := dispatcher.New("sessions", primaryFactory, factoryFor(backupStore), cooldown)

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsFailedOver()).To(BeTrue())

			value, readErr := backupStore.Read("k")
			Expect(readErr).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("v")))

			time.Sleep(cooldown + 50*time.Millisecond)

			// The write went to backup, so primary reports the key missing.
			_, err = d.Execute(readAction("k"))
			Expect(err).To(MatchError(store.ErrKeyNotFound))
			Expect(d.IsFailedOver()).To(BeFalse())
		})
	})

	Describe("Dispatch", func() {
		It("should report primary for a healthy dispatch", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			_, tier, err := d.Dispatch(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(tier).To(Equal(dispatcher.TierPrimary))
		})

		It("should report primary for a business failure", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			_, tier, err := d.Dispatch(readAction("missing"))
			Expect(err).To(MatchError(store.ErrKeyNotFound))
			Expect(tier).To(Equal(dispatcher.TierPrimary))
		})

		It("should report backup while the breaker is open", func() {
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(backupStore),
				cooldown)

			_, _, _ = d.Dispatch(addAction("k", "v"))
			Expect(d.IsFailedOver()).To(BeTrue())

			_, tier, err := d.Dispatch(readAction("k"))
			Expect(err).NotTo(HaveOccurred())
			Expect(tier).To(Equal(dispatcher.TierBackup))
		})

		It("should report backup for a pre-threshold fallback", func() {
			primary := &flakyHandle{remaining: 1, err: store.ErrUnavailable, inner: primaryStore}
			d := dispatcher.New("orders", factoryFor(primary), factoryFor(backupStore), cooldown,
				dispatcher.WithThreshold(2))

			// Served from backup while the breaker is still closed, so the
			// tier is the only accurate signal.
			_, tier, err := d.Dispatch(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(tier).To(Equal(dispatcher.TierBackup))
			Expect(d.IsFailedOver()).To(BeFalse())
			Expect(backupStore.Len()).To(Equal(1))
		})
	})

	Describe("Transient", func() {
		It("should use the default classifier", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			Expect(d.Transient(store.ErrUnavailable)).To(BeTrue())
			Expect(d.Transient(store.ErrKeyNotFound)).To(BeFalse())
		})

		It("should use the configured classifier", func() {
			poison := errors.New("custom transient marker")
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown,
				dispatcher.WithClassifier(func(err error) bool {
					return errors.Is(err, poison)
				}))

			Expect(d.Transient(poison)).To(BeTrue())
			Expect(d.Transient(store.ErrUnavailable)).To(BeFalse())
		})
	})

	Describe("Run", func() {
		It("should return typed results", func() {
			Expect(primaryStore.Add("k", []byte("typed"))).To(Succeed())
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			value, err := dispatcher.Run(d, func(h store.Handle) ([]byte, error) {
				return h.Read("k")
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("typed")))
		})

		It("should return the zero value on error", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			value, err := dispatcher.Run(d, func(h store.Handle) ([]byte, error) {
				return h.Read("missing")
			})
			Expect(err).To(MatchError(store.ErrKeyNotFound))
			Expect(value).To(BeNil())
		})
	})

	Describe("Options", func() {
		It("should honor a custom classifier", func() {
			poison := errors.New("custom transient marker")
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: poison}),
				factoryFor(backupStore),
				cooldown,
				dispatcher.WithClassifier(func(err error) bool {
					return errors.Is(err, poison)
				}))

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsFailedOver()).To(BeTrue())
		})

		It("should fire the state change hook on transitions", func() {
			var (
				mutex       sync.Mutex
				transitions []string
			)
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(backupStore),
				cooldown,
				dispatcher.WithOnStateChange(func(from, to circuitbreaker.State) {
					mutex.Lock()
					defer mutex.Unlock()
					transitions = append(transitions, from.String()+"->"+to.String())
				}))

			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())

			mutex.Lock()
			defer mutex.Unlock()
			Expect(transitions).To(ContainElement("CLOSED->OPEN"))
		})

		It("should respect a higher failure threshold", func() {
			primary := &flakyHandle{remaining: 1, err: store.ErrUnavailable, inner: primaryStore}
			d := dispatcher.New("orders", factoryFor(primary), factoryFor(backupStore), cooldown,
				dispatcher.WithThreshold(2))

			// First transient failure falls back but does not open the breaker.
			_, err := d.Execute(addAction("k", "v"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsFailedOver()).To(BeFalse())
			Expect(backupStore.Len()).To(Equal(1))
		})
	})

	Describe("Concurrent execution", func() {
		It("should report chained from/to pairs under concurrent dispatch", func() {
			var (
				mutex       sync.Mutex
				transitions [][2]circuitbreaker.State
			)
			d := dispatcher.New("orders",
				factoryFor(failingHandle{err: store.ErrUnavailable}),
				factoryFor(backupStore),
				5*time.Millisecond,
				dispatcher.WithOnStateChange(func(from, to circuitbreaker.State) {
					mutex.Lock()
					defer mutex.Unlock()
					transitions = append(transitions, [2]circuitbreaker.State{from, to})
				}))

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 25; j++ {
						_, _ = d.Execute(readAction("k"))
						time.Sleep(time.Millisecond)
					}
				}()
			}
			wg.Wait()

			mutex.Lock()
			defer mutex.Unlock()
			Expect(transitions).NotTo(BeEmpty())

			// Every transition starts where the previous one ended.
			for i := 1; i < len(transitions); i++ {
				Expect(transitions[i][0]).To(Equal(transitions[i-1][1]))
			}
		})

		It("should survive concurrent calls without corrupting state", func() {
			d := dispatcher.New("orders", factoryFor(primaryStore), factoryFor(backupStore), cooldown)

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						_, _ = d.Execute(readAction("missing"))
					}
				}()
			}
			wg.Wait()

			Expect(d.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})
})
