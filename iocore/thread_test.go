package iocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/iocore"
	"github.com/sarchlab/marssx86/uop"
)

var _ = Describe("AtomThread", func() {
	It("stalls fetch once the branch-in-flight budget is exhausted", func() {
		th := iocore.NewAtomThread(0, context.NewContext(), 8, 8, 4, 1)
		Expect(th.CanFetch()).To(BeTrue())

		th.Enqueue(iocore.NewAtomOp(0x1000, []uop.Uop{{Opcode: uop.OpBrCond, SOM: true, EOM: true}}))
		Expect(th.CanFetch()).To(BeFalse())
	})

	It("stalls fetch while waiting on the icache", func() {
		th := iocore.NewAtomThread(0, context.NewContext(), 8, 8, 4, 4)
		th.WaitingForICache = true
		Expect(th.CanFetch()).To(BeFalse())
	})

	It("moves dispatch-queue entries into the commit buffer in order", func() {
		th := iocore.NewAtomThread(0, context.NewContext(), 8, 8, 4, 4)
		first := iocore.NewAtomOp(0x1000, []uop.Uop{{Opcode: uop.OpAdd, SOM: true, EOM: true}})
		second := iocore.NewAtomOp(0x1004, []uop.Uop{{Opcode: uop.OpSub, SOM: true, EOM: true}})
		th.Enqueue(first)
		th.Enqueue(second)

		got, ok := th.DispatchFront()
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(first))
		Expect(th.CommitHead()).To(Equal(first))
	})

	It("annuls from an index onward and releases their locks", func() {
		th := iocore.NewAtomThread(0, context.NewContext(), 8, 8, 4, 4)
		a := iocore.NewAtomOp(0x1000, []uop.Uop{{Opcode: uop.OpAdd, SOM: true, EOM: true}})
		b := iocore.NewAtomOp(0x1004, []uop.Uop{{Opcode: uop.OpSt, SOM: true, EOM: true}})
		b.GrabMemLock(0x40)
		th.Enqueue(a)
		th.DispatchFront()
		th.Enqueue(b)
		th.DispatchFront()

		released := th.AnnulFrom(1)
		Expect(released).To(ConsistOf(uint64(0x40)))
		Expect(th.CommitBuffer).To(HaveLen(1))
		Expect(th.CommitBuffer[0]).To(Equal(a))
	})
})
