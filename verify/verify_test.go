package verify_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/directory"
	"github.com/sarchlab/marssx86/mesi"
	"github.com/sarchlab/marssx86/oocore"
	"github.com/sarchlab/marssx86/uop"
	"github.com/sarchlab/marssx86/verify"
)

var _ = Describe("CheckRegFile", func() {
	It("reports no violation for a freshly allocated/released register", func() {
		rf := oocore.NewRegFile("int", 4)
		rrt := oocore.NewRRT()

		r, ok := rf.Alloc()
		Expect(ok).To(BeTrue())
		rrt.Set(uop.Reg(0), r)

		vs := verify.CheckRegFile(rf, rrt)
		Expect(vs.OK()).To(BeTrue())

		rrt.Set(uop.Reg(0), -1) // unreference without freeing the rename slot
		rf.Release(r)

		vs = verify.CheckRegFile(rf, rrt)
		Expect(vs.OK()).To(BeTrue())
	})

	It("flags a register the RRT still references after it returns to FREE", func() {
		rf := oocore.NewRegFile("int", 4)
		rrt := oocore.NewRRT()

		r, _ := rf.Alloc()
		rf.Release(r) // now FREE, refcount 0

		rrt.Set(uop.Reg(1), r) // but a stale RRT entry still points at it

		vs := verify.CheckRegFile(rf, rrt)
		Expect(vs.OK()).To(BeFalse())
		Expect(vs[0].Invariant).To(ContainSubstring("FREE"))
	})
})

var _ = Describe("CheckROB", func() {
	It("reports no violation for entries dispatched in order", func() {
		rob := oocore.NewROB(8)
		rob.Dispatch(uop.Uop{Opcode: uop.OpAdd}, -1, 0)
		rob.Dispatch(uop.Uop{Opcode: uop.OpAdd}, -1, 1)

		vs := verify.CheckROB(rob)
		Expect(vs.OK()).To(BeTrue())
	})
})

var _ = Describe("CheckLines", func() {
	It("reports no violation when every valid way holds a distinct tag", func() {
		lines := mesi.NewLines(4, 2, 64, 1, 1)
		lines.Insert(0x0, mesi.Exclusive)
		lines.Insert(0x40, mesi.Exclusive)

		vs := verify.CheckLines("l1d", lines)
		Expect(vs.OK()).To(BeTrue())
	})
})

var _ = Describe("CheckDirectory", func() {
	It("reports no violation for a dirty entry whose single owner is present", func() {
		store := directory.NewStore(8)
		e, _, _, _ := store.Allocate(0x1000)
		e.Owner = 0
		e.Present.Set(0)
		e.Dirty = true

		vs := verify.CheckDirectory(store)
		Expect(vs.OK()).To(BeTrue())
	})

	It("flags dirty=1 with more than one sharer present", func() {
		store := directory.NewStore(8)
		e, _, _, _ := store.Allocate(0x2000)
		e.Present.Set(0)
		e.Present.Set(1)
		e.Dirty = true

		vs := verify.CheckDirectory(store)
		Expect(vs.OK()).To(BeFalse())
		Expect(vs[0].Invariant).To(ContainSubstring("popcount"))
	})

	It("flags an owner absent from the present set", func() {
		store := directory.NewStore(8)
		e, _, _, _ := store.Allocate(0x3000)
		e.Owner = 2 // present never set for core 2

		vs := verify.CheckDirectory(store)
		Expect(vs.OK()).To(BeFalse())
		Expect(vs[0].Invariant).To(ContainSubstring("present[owner]"))
	})
})

// fakeEmulator is a minimal context.Emulator that always reports the
// architectural state the test wants the checker to compare against.
type fakeEmulator struct {
	next *context.Context
}

func (f *fakeEmulator) StepOneInsn(ctx *context.Context) error {
	*ctx = *f.next
	return nil
}
func (f *fakeEmulator) Snapshot(vcpu int) *context.Context { return f.next }
func (f *fakeEmulator) IsPageDirty(mfn uint64) bool        { return false }
func (f *fakeEmulator) SetPageDirty(mfn uint64)            {}
func (f *fakeEmulator) ClearPageDirty(mfn uint64)          {}

var _ = Describe("Checker", func() {
	It("reports no violation when the timing core matches the functional emulator", func() {
		seed := context.NewContext()
		seed.RIP = 0x1000

		emu := &fakeEmulator{next: &context.Context{RIP: 0x1004}}
		c := verify.NewChecker(emu, 0)

		core := &context.Context{RIP: 0x1004}
		Expect(c.VerifyCommit(core)).To(BeNil())
	})

	It("flags a RIP divergence between the core and the functional emulator", func() {
		emu := &fakeEmulator{next: &context.Context{RIP: 0x2000}}
		c := verify.NewChecker(emu, 0)

		core := &context.Context{RIP: 0x9999} // core committed to the wrong RIP
		v := c.VerifyCommit(core)
		Expect(v).NotTo(BeNil())
		Expect(v.Invariant).To(ContainSubstring("checker"))
	})

	It("ignores x87 status-word bits excluded by FlagMask", func() {
		emu := &fakeEmulator{next: &context.Context{RIP: 0x3000, X87SW: 0xFF}}
		c := verify.NewChecker(emu, 0)
		c.FlagMask = &verify.FlagMask{X87SW: 0x0F} // only the low nibble is architecturally documented

		core := &context.Context{RIP: 0x3000, X87SW: 0x1F} // high nibble differs, low nibble matches
		Expect(c.VerifyCommit(core)).To(BeNil())
	})
})

var _ = Describe("DumpViolations", func() {
	It("renders every recorded violation", func() {
		vs := verify.Violations{{Invariant: "x", Detail: "y"}}
		var buf bytes.Buffer
		verify.DumpViolations(&buf, vs)
		Expect(buf.String()).To(ContainSubstring("x"))
		Expect(buf.String()).To(ContainSubstring("y"))
	})
})
