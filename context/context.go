// Package context models per-VCPU architectural state and the narrow
// interfaces the timing core uses to talk to its external collaborators:
// the functional emulator (QEMU, in the original system) and the x86
// decoder. Both collaborators are out of scope (spec §1) — this package
// only defines what the core consumes from them.
package context

// ExceptionKind enumerates the x86-visible exception/trap kinds the core
// can hand back to the functional emulator (spec §7).
type ExceptionKind int

const (
	ExceptionNone ExceptionKind = iota
	ExceptionPageFaultRead
	ExceptionPageFaultWrite
	ExceptionPageFaultExec
	ExceptionFP        // #MF
	ExceptionFPNotAvail // #NM
	ExceptionDivide     // #DE
)

// Context holds one VCPU's architectural state: everything a checker needs
// to compare against the functional emulator after each committed
// instruction (spec §3 Context, spec §8 checker invariant).
type Context struct {
	GPR [16]uint64 // integer general-purpose registers
	XMM [16][2]uint64 // 16 x 128-bit XMM registers

	X87Stack [8]uint64
	X87Tags  [8]byte
	X87CW    uint16
	X87SW    uint16

	RIP uint64

	CSBase, DSBase, ESBase, FSBase, GSBase, SSBase uint64

	CR0, CR2, CR3, CR4 uint64
	EFER               uint64

	Use64      bool
	Use32      bool
	KernelMode bool
	Running    bool

	InterruptPending bool

	// ExceptionIndex/ErrorCode/CR2 are set by the core when handing control
	// back to the functional emulator on a fault (spec §7).
	ExceptionIndex ExceptionKind
	ErrorCode      uint64

	// smcDirty tracks physical pages written by committed stores since the
	// last time the decoder checked them, mirroring the QEMU-side
	// smc_setdirty/smc_isdirty pair (spec §6 SMC hook).
	smcDirty map[uint64]bool
}

// NewContext returns a freshly reset VCPU context.
func NewContext() *Context {
	return &Context{
		Running:  true,
		smcDirty: make(map[uint64]bool),
	}
}

// CheckEvents implements spec §6's per-cycle interrupt probe: OR of
// (interrupt_request && IF_MASK) and exit_request. ifMask/exitRequest are
// supplied by the functional emulator's interrupt controller, which this
// module does not model.
func (c *Context) CheckEvents(ifMask, exitRequest bool) bool {
	return (c.InterruptPending && ifMask) || exitRequest
}

// SetPageDirty marks a guest-physical page as self-modified. Called by the
// core on every committed store (spec §6 SMC hook); oocore.Core checks
// IsPageDirty before fetching from a page and invalidates that page's
// cached blocks when it is set.
func (c *Context) SetPageDirty(mfn uint64) {
	c.smcDirty[mfn] = true
}

// IsPageDirty reports whether mfn has been written since it was last
// cleared.
func (c *Context) IsPageDirty(mfn uint64) bool {
	return c.smcDirty[mfn]
}

// ClearPageDirty clears the dirty bit for mfn, called once the decoder has
// invalidated and re-decoded every basic block touching that page.
func (c *Context) ClearPageDirty(mfn uint64) {
	delete(c.smcDirty, mfn)
}

// HandlePageFault records a page fault for the functional emulator
// (spec §6): it sets CR2 to vaddr and ExceptionIndex to the read or write
// page-fault kind. It does not itself stop commit.
func (c *Context) HandlePageFault(vaddr uint64, isWrite bool) {
	c.CR2 = vaddr
	if isWrite {
		c.ExceptionIndex = ExceptionPageFaultWrite
	} else {
		c.ExceptionIndex = ExceptionPageFaultRead
	}
}

// Equal reports whether two contexts have identical user-visible
// architectural state, modulo nothing — callers that need to ignore
// documented flag-bit exceptions (spec §8 checker invariant) should mask
// those bits out of both contexts before calling Equal.
func (c *Context) Equal(other *Context) bool {
	if c.RIP != other.RIP {
		return false
	}
	if c.GPR != other.GPR {
		return false
	}
	if c.XMM != other.XMM {
		return false
	}
	if c.X87Stack != other.X87Stack || c.X87Tags != other.X87Tags {
		return false
	}
	if c.X87SW != other.X87SW {
		return false
	}
	return true
}

// Emulator is the functional-execution collaborator the core drives during
// fast-forward and consults for architectural ground truth (spec §1, §6).
// The real implementation lives in QEMU and is out of scope; this interface
// is the entire surface the timing core depends on.
type Emulator interface {
	// StepOneInsn executes exactly one x86 instruction functionally,
	// updating ctx in place.
	StepOneInsn(ctx *Context) error

	// Snapshot returns a copy of the emulator's current architectural state
	// for the given VCPU, used to seed a Context at simulation start or
	// after a fast-forward interval.
	Snapshot(vcpu int) *Context

	// IsPageDirty/SetPageDirty/ClearPageDirty expose the host-side SMC
	// bookkeeping keyed by guest machine frame number (mfn).
	IsPageDirty(mfn uint64) bool
	SetPageDirty(mfn uint64)
	ClearPageDirty(mfn uint64)
}
