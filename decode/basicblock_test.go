package decode_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/uop"
)

var _ = Describe("RIPVirtPhys", func() {
	It("computes matching mfn_lo/mfn_hi when a block fits one page", func() {
		key := decode.NewRIPVirtPhys(0x1000, 0x1000, 16, true, true, false)
		Expect(key.SpansOnePage()).To(BeTrue())
		Expect(key.MfnLo).To(Equal(key.MfnHi))
	})

	It("computes distinct mfn_lo/mfn_hi when a block crosses a page", func() {
		key := decode.NewRIPVirtPhys(0x1ff0, 0x1ff0, 32, true, true, false)
		Expect(key.SpansOnePage()).To(BeFalse())
		Expect(key.MfnHi).To(Equal(key.MfnLo + 1))
	})
})

var _ = Describe("BasicBlock", func() {
	It("rejects a uop stream longer than the maximum", func() {
		uops := make([]uop.Uop, decode.MaxUopsPerBB+1)
		_, err := decode.NewBasicBlock(decode.RIPVirtPhys{RIP: 0x1000}, uops, 0, 0, uop.BranchNone)
		Expect(err).To(HaveOccurred())
	})

	It("counts user instructions by SOM markers", func() {
		uops := []uop.Uop{
			{Opcode: uop.OpAdd, SOM: true},
			{Opcode: uop.OpAdd, EOM: true},
			{Opcode: uop.OpSub, SOM: true, EOM: true},
		}
		bb, err := decode.NewBasicBlock(decode.RIPVirtPhys{RIP: 0x2000}, uops, 0, 0, uop.BranchNone)
		Expect(err).NotTo(HaveOccurred())
		Expect(bb.UserInsns).To(Equal(2))
		Expect(bb.NumUops).To(Equal(3))
	})

	It("tracks refcount across acquire/release", func() {
		bb, err := decode.NewBasicBlock(decode.RIPVirtPhys{RIP: 0x2000}, nil, 0, 0, uop.BranchNone)
		Expect(err).NotTo(HaveOccurred())

		bb.Acquire()
		bb.Acquire()
		Expect(bb.Release()).To(Equal(1))
		Expect(bb.Release()).To(Equal(0))
	})
})
