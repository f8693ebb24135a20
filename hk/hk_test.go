package hk_test

import (
	"sync/atomic"
	"time"

	"github.com/alcp-iot/hapcanbridge/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HouseKeeper", func() {
	It("invokes a registered function on its interval", func() {
		var calls int32
		hk.Reg("counter", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return 10 * time.Millisecond
		}, 10*time.Millisecond)
		defer hk.Unreg("counter")

		Eventually(func() int32 {
			return atomic.LoadInt32(&calls)
		}, "200ms", "5ms").Should(BeNumerically(">=", 2))
	})

	It("stops calling a function once unregistered", func() {
		var calls int32
		hk.Reg("onceoff", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return 10 * time.Millisecond
		}, 10*time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&calls) }, "100ms", "5ms").Should(BeNumerically(">=", 1))
		hk.Unreg("onceoff")
		after := atomic.LoadInt32(&calls)
		Consistently(func() int32 { return atomic.LoadInt32(&calls) }, "50ms", "5ms").Should(Equal(after))
	})

	It("removes a function that returns UnregInterval", func() {
		var calls int32
		hk.Reg("selfcancel", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return hk.UnregInterval
		}, 5*time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&calls) }, "100ms", "5ms").Should(Equal(int32(1)))
		after := atomic.LoadInt32(&calls)
		Consistently(func() int32 { return atomic.LoadInt32(&calls) }, "50ms", "5ms").Should(Equal(after))
	})
})
