package dispatcher_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/kv-failover/internal/circuitbreaker"
	"github.com/angeloszaimis/kv-failover/internal/dispatcher"
	"github.com/angeloszaimis/kv-failover/internal/store"
	"github.com/angeloszaimis/kv-failover/internal/store/memory"
)

var _ = Describe("Registry", func() {
	var registry *dispatcher.Registry

	memFactory := func() (store.Handle, error) {
		return memory.New(), nil
	}

	BeforeEach(func() {
		registry = dispatcher.NewRegistry(memFactory, memFactory, 100*time.Millisecond, nil)
	})

	Describe("Get", func() {
		It("should return the same dispatcher for the same cache name", func() {
			first := registry.Get("orders")
			second := registry.Get("orders")
			Expect(second).To(BeIdenticalTo(first))
		})

		It("should return distinct dispatchers for distinct cache names", func() {
			Expect(registry.Get("orders")).NotTo(BeIdenticalTo(registry.Get("sessions")))
		})

		It("should retain exactly one dispatcher under concurrent first use", func() {
			const goroutines = 32
			dispatchers := make([]*dispatcher.Dispatcher, goroutines)

			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					dispatchers[i] = registry.Get("orders")
				}(i)
			}
			wg.Wait()

			for _, d := range dispatchers {
				Expect(d).To(BeIdenticalTo(dispatchers[0]))
			}
		})
	})

	Describe("WithOnCreate", func() {
		It("should fire once per cache name", func() {
			var created int32
			registry = dispatcher.NewRegistry(memFactory, memFactory, 100*time.Millisecond,
				[]dispatcher.RegistryOption{
					dispatcher.WithOnCreate(func(name string, d *dispatcher.Dispatcher) {
						atomic.AddInt32(&created, 1)
					}),
				})

			registry.Get("orders")
			registry.Get("orders")
			registry.Get("sessions")

			Expect(atomic.LoadInt32(&created)).To(Equal(int32(2)))
		})
	})

	Describe("Stats", func() {
		It("should report breaker state per cache", func() {
			registry.Get("orders")
			registry.Get("sessions")

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["orders"]).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["sessions"]).To(Equal(circuitbreaker.StateClosed))
		})
	})
})
