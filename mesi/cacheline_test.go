package mesi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/interconnect"
	"github.com/sarchlab/marssx86/mesi"
)

var _ = Describe("Lines", func() {
	It("reports a miss until a line is inserted, then hits", func() {
		l := mesi.NewLines(4, 2, 64, 1, 1)
		_, _, ok := l.Probe(0x1000)
		Expect(ok).To(BeFalse())

		l.Insert(0x1000, mesi.Exclusive)
		line, _, ok := l.Probe(0x1000)
		Expect(ok).To(BeTrue())
		Expect(line.State).To(Equal(mesi.Exclusive))
	})

	It("evicts the way that was not touched", func() {
		l := mesi.NewLines(1, 2, 64, 1, 1)
		l.Insert(0x0000, mesi.Shared)
		l.Insert(0x0040, mesi.Shared)

		way, victim := l.Victim(0x0080)
		Expect(victim.Valid).To(BeTrue())
		_, wayOfFirst, _ := l.Probe(0x0000)
		Expect(way).To(Equal(wayOfFirst))
	})

	It("resets port usage counters when the cycle advances", func() {
		l := mesi.NewLines(1, 1, 64, 1, 1)
		Expect(l.GetPort(interconnect.OpRead, 5)).To(BeTrue())
		Expect(l.GetPort(interconnect.OpRead, 5)).To(BeFalse())
		Expect(l.GetPort(interconnect.OpRead, 6)).To(BeTrue())
	})

	It("invalidates a present line and reports absence for a missing one", func() {
		l := mesi.NewLines(4, 2, 64, 1, 1)
		l.Insert(0x2000, mesi.Modified)
		Expect(l.Invalidate(0x2000)).To(BeTrue())
		Expect(l.Invalidate(0x2000)).To(BeFalse())
		_, _, ok := l.Probe(0x2000)
		Expect(ok).To(BeFalse())
	})
})
