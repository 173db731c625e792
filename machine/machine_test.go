package machine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/machine"
)

var _ = Describe("Machine stop conditions", func() {
	// A two-block loop: one instruction at 0x1000 falls through to a
	// self-looping nop at 0x1010, so the core commits one instruction per
	// trip around the loop indefinitely unless a stop condition halts it.
	loop := func() []decode.FixtureBlock {
		return []decode.FixtureBlock{
			{RIP: 0x1000, Bytes: 4, RipNotTaken: 0x1010, Ops: []decode.FixtureUop{
				{Opcode: "add", Rd: 1, SOM: true, EOM: true},
			}},
			{RIP: 0x1010, Bytes: 1, RipNotTaken: 0x1010, Ops: []decode.FixtureUop{
				{Opcode: "nop", SOM: true, EOM: true},
			}},
		}
	}

	newMachine := func() *machine.Machine {
		translator := decode.NewFixtureTranslator(loop())
		levels := []machine.LevelSpec{
			{Name: "l1d", Sets: 8, Ways: 4, LineSize: 64, ReadPorts: 1, WritePorts: 1, Latency: 2, LinkDelay: 1, Capacity: 8},
		}
		b := machine.NewBuilder(sim.NewSerialEngine(), 1*sim.GHz, 16, 4, 64).
			WithOutOfOrderCore(levels, translator, 8, 32, 8, 8, 4, 4, 4)
		return b.Build("test")
	}

	It("halts once StopCycle is reached", func() {
		m := newMachine()
		m.StopCycle = 3

		for m.Tick(0) {
		}

		halted, reason := m.Halted()
		Expect(halted).To(BeTrue())
		Expect(reason).To(Equal("stopcycle reached"))
		Expect(m.Cycle()).To(BeNumerically(">=", uint64(3)))
	})

	It("halts once StopInsns committed x86 instructions have retired", func() {
		m := newMachine()
		m.StopInsns = 2

		for i := 0; i < 200 && m.Tick(0); i++ {
		}

		halted, reason := m.Halted()
		Expect(halted).To(BeTrue())
		Expect(reason).To(Equal("stopinsns reached"))
		Expect(m.CommittedInsns()).To(BeNumerically(">=", uint64(2)))
	})

	It("halts once the core is fetching from StopRIP", func() {
		m := newMachine()
		m.StopRIP = 0x1010

		for i := 0; i < 200 && m.Tick(0); i++ {
		}

		halted, reason := m.Halted()
		Expect(halted).To(BeTrue())
		Expect(reason).To(Equal("stoprip reached"))
	})
})
