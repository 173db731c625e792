package context_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/context"
)

var _ = Describe("Context", func() {
	var ctx *context.Context

	BeforeEach(func() {
		ctx = context.NewContext()
	})

	It("starts running with no dirty pages", func() {
		Expect(ctx.Running).To(BeTrue())
		Expect(ctx.IsPageDirty(0x1000)).To(BeFalse())
	})

	It("tracks SMC dirty pages independently per mfn", func() {
		ctx.SetPageDirty(0x3000)
		Expect(ctx.IsPageDirty(0x3000)).To(BeTrue())
		Expect(ctx.IsPageDirty(0x4000)).To(BeFalse())

		ctx.ClearPageDirty(0x3000)
		Expect(ctx.IsPageDirty(0x3000)).To(BeFalse())
	})

	It("raises the interrupt-pending OR exit-request event probe", func() {
		Expect(ctx.CheckEvents(true, false)).To(BeFalse())

		ctx.InterruptPending = true
		Expect(ctx.CheckEvents(true, false)).To(BeTrue())
		Expect(ctx.CheckEvents(false, false)).To(BeFalse())
		Expect(ctx.CheckEvents(false, true)).To(BeTrue())
	})

	It("records the exception kind and cr2 on a page fault", func() {
		ctx.HandlePageFault(0xdeadbeef, true)
		Expect(ctx.ExceptionIndex).To(Equal(context.ExceptionPageFaultWrite))
		Expect(ctx.CR2).To(Equal(uint64(0xdeadbeef)))
	})

	It("compares architectural state for equality", func() {
		other := context.NewContext()
		Expect(ctx.Equal(other)).To(BeTrue())

		other.GPR[3] = 42
		Expect(ctx.Equal(other)).To(BeFalse())
	})
})
