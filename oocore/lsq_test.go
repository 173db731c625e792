package oocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/oocore"
	"github.com/sarchlab/marssx86/uop"
)

var _ = Describe("LSQ", func() {
	It("forwards data from a known-address store that fully covers the load", func() {
		q := oocore.NewLSQ(8)
		q.Append(&oocore.LSQEntry{Seq: 0, IsStore: true, Addr: 0x1000, AddrKnown: true, Size: uop.Size4B, Data: 0xAABBCCDD})

		load := &oocore.LSQEntry{Seq: 1, IsStore: false, Addr: 0x1000, AddrKnown: true, Size: uop.Size4B}
		result, data := q.CheckForward(load)
		Expect(result).To(Equal(oocore.Forwarded))
		Expect(data).To(Equal(uint64(0xAABBCCDD)))
	})

	It("reports ambiguous when an older store's address is unknown", func() {
		q := oocore.NewLSQ(8)
		q.Append(&oocore.LSQEntry{Seq: 0, IsStore: true, AddrKnown: false})

		load := &oocore.LSQEntry{Seq: 1, IsStore: false, Addr: 0x2000, AddrKnown: true, Size: uop.Size4B}
		result, _ := q.CheckForward(load)
		Expect(result).To(Equal(oocore.Ambiguous))
	})

	It("reports no forward when no older store overlaps", func() {
		q := oocore.NewLSQ(8)
		q.Append(&oocore.LSQEntry{Seq: 0, IsStore: true, Addr: 0x9000, AddrKnown: true, Size: uop.Size4B})

		load := &oocore.LSQEntry{Seq: 1, IsStore: false, Addr: 0x2000, AddrKnown: true, Size: uop.Size4B}
		result, _ := q.CheckForward(load)
		Expect(result).To(Equal(oocore.NoForward))
	})
})
