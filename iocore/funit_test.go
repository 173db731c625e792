package iocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/iocore"
)

var _ = Describe("FUState", func() {
	It("reserves a pipelined FU and frees it again next cycle", func() {
		fu := iocore.NewFUState()
		claimed, ok := fu.Reserve(iocore.AnyALU, true, 1)
		Expect(ok).To(BeTrue())
		Expect(claimed & iocore.AnyALU).NotTo(BeZero())

		fu.Tick()
		_, ok = fu.Reserve(iocore.AnyALU, true, 1)
		Expect(ok).To(BeTrue())
	})

	It("keeps a non-pipelined FU busy until its latency elapses", func() {
		fu := iocore.NewFUState()
		_, ok := fu.Reserve(iocore.FUFpu0, false, 3)
		Expect(ok).To(BeTrue())

		fu.Tick()
		_, ok = fu.Reserve(iocore.FUFpu0, false, 3)
		Expect(ok).To(BeFalse())

		fu.Tick()
		fu.Tick()
		_, ok = fu.Reserve(iocore.FUFpu0, false, 3)
		Expect(ok).To(BeTrue())
	})

	It("fails to reserve when every candidate FU is busy", func() {
		fu := iocore.NewFUState()
		_, ok1 := fu.Reserve(iocore.FUAlu0, false, 2)
		Expect(ok1).To(BeTrue())
		_, ok2 := fu.Reserve(iocore.FUAlu0, false, 2)
		Expect(ok2).To(BeFalse())
	})
})
