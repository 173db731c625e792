package iocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/iocore"
	"github.com/sarchlab/marssx86/oocore"
)

// fakeMemory mirrors oocore_test's stand-in: a minimal oocore.Memory that
// reports a fixed latency or backpressure, without any mesi/directory
// wiring, to exercise Core's issue/writeback gating in isolation.
type fakeMemory struct {
	latency uint64
	ok      bool
	calls   int
}

func (m *fakeMemory) Access(coreID int, address uint64, op oocore.MemOp) (uint64, bool) {
	m.calls++
	if !m.ok {
		return 0, false
	}
	return m.latency, true
}

var _ = Describe("Core memory wiring", func() {
	It("holds a load AtomOp Issued until Memory's reported latency drains", func() {
		translator := decode.NewFixtureTranslator([]decode.FixtureBlock{
			{RIP: 0x2000, Bytes: 4, RipNotTaken: 0x2010, Ops: []decode.FixtureUop{
				{Opcode: "ld", Rd: 1, SOM: true, EOM: true},
			}},
			{RIP: 0x2010, Bytes: 1, RipNotTaken: 0x2010, Ops: []decode.FixtureUop{
				{Opcode: "nop", SOM: true, EOM: true},
			}},
		})
		bbCache := decode.NewBasicBlockCache(translator, 8)

		ctx0 := context.NewContext()
		ctx0.RIP = 0x2000
		th0 := iocore.NewAtomThread(0, ctx0, 8, 8, 4, 4)
		th1 := iocore.NewAtomThread(1, context.NewContext(), 8, 8, 4, 4)

		core := iocore.NewCore(bbCache, oocore.StaticNotTakenPredictor{}, 2, th0, th1)
		mem := &fakeMemory{latency: 3, ok: true}
		core.Memory = mem
		core.CoreID = 0

		core.Fetch()
		core.Dispatch()

		results := core.Issue()
		Expect(results[0]).To(Equal(iocore.IssueOK))
		Expect(mem.calls).To(Equal(1))

		core.Writeback()
		Expect(th0.CommitHead().State).To(Equal(iocore.OpIssued))

		for i := 0; i < 2; i++ {
			core.Writeback()
			Expect(th0.CommitHead().State).To(Equal(iocore.OpIssued))
		}

		core.Writeback()
		Expect(th0.CommitHead().State).To(Equal(iocore.OpCompleted))
		Expect(mem.calls).To(Equal(1)) // issued once, not re-polled every cycle

		committed, _ := core.Commit()
		Expect(committed).To(HaveLen(1))
	})

	It("reports IssueCacheMiss and retries when Memory backpressures", func() {
		translator := decode.NewFixtureTranslator([]decode.FixtureBlock{
			{RIP: 0x3000, Bytes: 4, RipNotTaken: 0x3010, Ops: []decode.FixtureUop{
				{Opcode: "st", Ra: 1, SOM: true, EOM: true},
			}},
			{RIP: 0x3010, Bytes: 1, RipNotTaken: 0x3010, Ops: []decode.FixtureUop{
				{Opcode: "nop", SOM: true, EOM: true},
			}},
		})
		bbCache := decode.NewBasicBlockCache(translator, 8)

		ctx0 := context.NewContext()
		ctx0.RIP = 0x3000
		th0 := iocore.NewAtomThread(0, ctx0, 8, 8, 4, 4)
		th1 := iocore.NewAtomThread(1, context.NewContext(), 8, 8, 4, 4)

		core := iocore.NewCore(bbCache, oocore.StaticNotTakenPredictor{}, 2, th0, th1)
		mem := &fakeMemory{ok: false}
		core.Memory = mem

		core.Fetch()
		core.Dispatch()

		results := core.Issue()
		Expect(results[0]).To(Equal(iocore.IssueCacheMiss))
		Expect(th0.CommitHead().State).To(Equal(iocore.OpDispatched))

		results = core.Issue()
		Expect(results[0]).To(Equal(iocore.IssueCacheMiss))
		Expect(mem.calls).To(BeNumerically(">", 1))

		mem.ok = true
		mem.latency = 0
		results = core.Issue()
		Expect(results[0]).To(Equal(iocore.IssueOK))

		core.Writeback()
		Expect(th0.CommitHead().State).To(Equal(iocore.OpCompleted))
	})
})
