package iocore_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/iocore"
	"github.com/sarchlab/marssx86/oocore"
)

var _ = Describe("Core", func() {
	It("fetches, dispatches, issues and commits one AtomOp per cycle", func() {
		translator := decode.NewFixtureTranslator([]decode.FixtureBlock{
			{RIP: 0x1000, Bytes: 4, RipNotTaken: 0x1010, Ops: []decode.FixtureUop{
				{Opcode: "add", Rd: 1, SOM: true, EOM: true},
			}},
			{RIP: 0x1010, Bytes: 1, RipNotTaken: 0x1010, Ops: []decode.FixtureUop{
				{Opcode: "nop", SOM: true, EOM: true},
			}},
		})
		bbCache := decode.NewBasicBlockCache(translator, 8)

		ctx0 := context.NewContext()
		ctx0.RIP = 0x1000
		th0 := iocore.NewAtomThread(0, ctx0, 8, 8, 4, 4)
		th1 := iocore.NewAtomThread(1, context.NewContext(), 8, 8, 4, 4)

		core := iocore.NewCore(bbCache, oocore.StaticNotTakenPredictor{}, 2, th0, th1)

		core.Fetch()
		Expect(th0.DispatchQueue).To(HaveLen(2))

		core.Dispatch()
		Expect(th0.CommitHead()).NotTo(BeNil())
		Expect(th0.CommitHead().State).To(Equal(iocore.OpDispatched))

		results := core.Issue()
		Expect(results[0]).To(Equal(iocore.IssueOK))

		core.Writeback()
		Expect(th0.CommitHead().State).To(Equal(iocore.OpCompleted))

		committed, unlock := core.Commit()
		Expect(committed).To(HaveLen(1))
		Expect(committed[0].State).To(Equal(iocore.OpCommitted))
		Expect(unlock).To(BeEmpty())

		Expect(core.CommittedInsns()).To(Equal(uint64(1)))
		Expect(core.CurrentRIP()).To(Equal(th0.Ctx.RIP))
	})

	It("switches the shared frontend to the other thread on a fetch miss", func() {
		translator := decode.NewFixtureTranslator([]decode.FixtureBlock{
			{RIP: 0x5000, Bytes: 1, RipNotTaken: 0x5000, Ops: []decode.FixtureUop{
				{Opcode: "nop", SOM: true, EOM: true},
			}},
		})
		bbCache := decode.NewBasicBlockCache(translator, 4)

		ctx0 := context.NewContext()
		ctx0.RIP = 0xDEAD // no fixture block at this RIP: stands in for an icache miss
		ctx1 := context.NewContext()
		ctx1.RIP = 0x5000

		th0 := iocore.NewAtomThread(0, ctx0, 4, 4, 2, 4)
		th1 := iocore.NewAtomThread(1, ctx1, 4, 4, 2, 4)
		core := iocore.NewCore(bbCache, oocore.StaticNotTakenPredictor{}, 1, th0, th1)

		core.Fetch()
		Expect(th0.WaitingForICache).To(BeTrue())
		Expect(th0.DispatchQueue).To(BeEmpty())

		core.Fetch()
		Expect(th1.DispatchQueue).To(HaveLen(1))
	})
})
