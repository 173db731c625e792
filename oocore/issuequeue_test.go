package oocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/oocore"
)

var _ = Describe("IssueQueue", func() {
	It("only selects slots whose sources are all ready", func() {
		q := oocore.NewIssueQueue(oocore.ClusterAll, 4, 2)
		notReady := &oocore.Entry{}
		q.Insert(notReady, [2]int{5, -1}, [2]bool{false, true})

		Expect(q.SelectReady()).To(BeEmpty())

		q.Wake(5)
		picked := q.SelectReady()
		Expect(picked).To(HaveLen(1))
	})

	It("selects at most Width ready slots per call", func() {
		q := oocore.NewIssueQueue(oocore.ClusterAll, 4, 1)
		q.Insert(&oocore.Entry{}, [2]int{-1, -1}, [2]bool{true, true})
		q.Insert(&oocore.Entry{}, [2]int{-1, -1}, [2]bool{true, true})

		first := q.SelectReady()
		Expect(first).To(HaveLen(1))
		second := q.SelectReady()
		Expect(second).To(HaveLen(1))
	})

	It("requeues a slot needing replay with its issued bit cleared", func() {
		q := oocore.NewIssueQueue(oocore.ClusterAll, 4, 2)
		q.Insert(&oocore.Entry{}, [2]int{-1, -1}, [2]bool{true, true})
		picked := q.SelectReady()
		Expect(picked).To(HaveLen(1))

		q.Requeue(picked[0])
		Expect(q.Len()).To(Equal(1))
		again := q.SelectReady()
		Expect(again).To(HaveLen(1))
	})
})
