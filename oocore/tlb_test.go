package oocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/oocore"
)

var _ = Describe("TLB", func() {
	It("misses until a mapping is inserted, then hits", func() {
		t := oocore.NewTLB(4)
		_, ok := t.Probe(0x10, 0)
		Expect(ok).To(BeFalse())

		t.Insert(0x10, 0, 0x77)
		pfn, ok := t.Probe(0x10, 0)
		Expect(ok).To(BeTrue())
		Expect(pfn).To(Equal(uint64(0x77)))
	})

	It("keeps mappings for different threads on the same page separate", func() {
		t := oocore.NewTLB(4)
		t.Insert(0x20, 0, 0x1)
		t.Insert(0x20, 1, 0x2)

		pfn0, _ := t.Probe(0x20, 0)
		pfn1, _ := t.Probe(0x20, 1)
		Expect(pfn0).To(Equal(uint64(0x1)))
		Expect(pfn1).To(Equal(uint64(0x2)))
	})

	It("flushes only the targeted thread's entries", func() {
		t := oocore.NewTLB(4)
		t.Insert(0x30, 0, 0x1)
		t.Insert(0x30, 1, 0x2)

		t.FlushThread(0)
		_, ok0 := t.Probe(0x30, 0)
		_, ok1 := t.Probe(0x30, 1)
		Expect(ok0).To(BeFalse())
		Expect(ok1).To(BeTrue())
	})

	It("flushes everything on FlushAll", func() {
		t := oocore.NewTLB(2)
		t.Insert(0x40, 0, 0x1)
		t.FlushAll()
		_, ok := t.Probe(0x40, 0)
		Expect(ok).To(BeFalse())
	})
})
