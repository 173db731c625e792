package verify

import (
	"fmt"

	"github.com/sarchlab/marssx86/context"
)

// Checker re-executes committed x86 instructions through the functional
// emulator (spec §7 "Checker mode") and asserts the timing core's
// resulting architectural state matches, modulo documented flag-bit
// exceptions the caller supplies as a mask applied to both contexts
// before comparison.
type Checker struct {
	Emulator context.Emulator
	Shadow   *context.Context

	// FlagMask, if non-nil, is ANDed into both contexts' X87SW before Equal
	// compares them, covering "modulo documented flag-bit exceptions"
	// (spec §7) without this package hardcoding which bits a given
	// configuration documents away.
	FlagMask *FlagMask
}

// FlagMask narrows the x87 status-word comparison to the bits a
// particular configuration considers architecturally significant.
type FlagMask struct {
	X87SW uint16
}

// NewChecker seeds a shadow context from the emulator's ground truth for
// vcpu and returns a Checker ready to verify commits against it.
func NewChecker(emu context.Emulator, vcpu int) *Checker {
	return &Checker{Emulator: emu, Shadow: emu.Snapshot(vcpu)}
}

// VerifyCommit steps the shadow context functionally by exactly one x86
// instruction and compares it against core, the timing core's
// post-commit architectural state (spec §8: "∀ consecutive committed
// instructions: the resulting architectural state equals the reference
// functional emulator's state"). It returns a Violation, not an error,
// so callers can accumulate several before deciding whether to halt
// (spec §7: never silent).
func (c *Checker) VerifyCommit(core *context.Context) *Violation {
	if err := c.Emulator.StepOneInsn(c.Shadow); err != nil {
		return &Violation{
			Invariant: "checker: functional emulator step succeeds",
			Detail:    err.Error(),
		}
	}

	shadow, live := *c.Shadow, *core
	if c.FlagMask != nil {
		shadow.X87SW &= c.FlagMask.X87SW
		live.X87SW &= c.FlagMask.X87SW
	}

	if !shadow.Equal(&live) {
		return &Violation{
			Invariant: "checker: timing core matches functional emulator after commit",
			Detail:    fmt.Sprintf("rip: core=0x%x shadow=0x%x", live.RIP, shadow.RIP),
		}
	}
	return nil
}
