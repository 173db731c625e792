package oocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/oocore"
	"github.com/sarchlab/marssx86/uop"
)

var _ = Describe("ROB", func() {
	It("commits entries in FIFO program order", func() {
		r := oocore.NewROB(4)
		r.Dispatch(uop.Uop{Opcode: 1}, -1, 0)
		r.Dispatch(uop.Uop{Opcode: 2}, -1, 1)

		first := r.CommitHead()
		Expect(first.Uop.Opcode).To(Equal(uop.Opcode(1)))
		second := r.CommitHead()
		Expect(second.Uop.Opcode).To(Equal(uop.Opcode(2)))
	})

	It("reports full once capacity is reached", func() {
		r := oocore.NewROB(1)
		r.Dispatch(uop.Uop{}, -1, -1)
		Expect(r.Full()).To(BeTrue())
	})

	It("annuls every entry from a sequence number onward", func() {
		r := oocore.NewROB(8)
		r.Dispatch(uop.Uop{}, -1, 0) // seq 0
		r.Dispatch(uop.Uop{}, -1, 1) // seq 1, the branch
		r.Dispatch(uop.Uop{}, -1, 2) // seq 2
		r.Dispatch(uop.Uop{}, -1, 3) // seq 3

		discarded := r.AnnulFrom(2)
		Expect(discarded).To(HaveLen(2))
		Expect(r.Len()).To(Equal(2))
	})
})
