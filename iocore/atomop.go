package iocore

import "github.com/sarchlab/marssx86/uop"

// OpState is an AtomOp's position in the in-order pipeline.
type OpState int

const (
	OpFetched OpState = iota
	OpDispatched
	OpIssued
	OpCompleted
	OpCommitted
	OpAnnulled
)

const maxLockAddrs = 4

// AtomOp groups every uop of one x86 instruction for atomic commit (spec
// §4.6: "AtomOp groups all uops of one x86 instruction for atomic
// commit"). Intel Atom executes close to one x86 instruction at a time;
// this mirrors that by keeping the uop slice as one unit that issues,
// completes and commits together instead of as independent ROB entries.
type AtomOp struct {
	RIP  uint64
	Uops []uop.Uop

	State OpState

	lockAddrs []uint64

	HadException bool

	// memIssued/memCyclesLeft track this AtomOp's in-flight Memory.Access
	// request (spec §4.6 "fine-grained MESI interaction"); memCyclesLeft
	// counts down the latency Memory reported before Writeback may
	// complete the op.
	memIssued     bool
	memCyclesLeft int
}

// memAccess reports the (address, isStore) a load/store AtomOp targets,
// taken from its first memory uop's immediate as a stand-in for full
// address generation — this pipeline models timing only, not
// architectural data values, the same simplification oocore.Core's
// issueMemory takes for the out-of-order core.
func (a *AtomOp) memAccess() (addr uint64, isStore bool) {
	for _, u := range a.Uops {
		if u.IsLoadStore() {
			return uint64(u.RbImm), u.IsStore()
		}
	}
	return 0, false
}

// NewAtomOp groups uops (already bounded to one som..eom instruction) into
// a fresh AtomOp at rip.
func NewAtomOp(rip uint64, uops []uop.Uop) *AtomOp {
	return &AtomOp{RIP: rip, Uops: uops, State: OpFetched}
}

// IsLoadStore reports whether any uop in the group touches memory.
func (a *AtomOp) IsLoadStore() bool {
	for _, u := range a.Uops {
		if u.IsLoadStore() {
			return true
		}
	}
	return false
}

// IsBranch reports whether the group ends in a control-transfer uop.
func (a *AtomOp) IsBranch() bool {
	for _, u := range a.Uops {
		if u.IsBranch() {
			return true
		}
	}
	return false
}

// fuRequirement returns the combined FU mask, port mask and pipelining
// requirement across every uop of the instruction: the whole AtomOp
// issues as a unit, so it needs every uop's functional unit simultaneously
// available (spec: Atom executes one x86 instruction's uops together).
func (a *AtomOp) fuRequirement() (mask FUMask, port Port, pipelined bool, latency byte) {
	mask = AnyFU
	port = AnyPort
	pipelined = true
	for _, u := range a.Uops {
		info := Lookup(u.Opcode)
		mask &= info.Mask
		port &= info.Port
		if !info.Pipelined {
			pipelined = false
		}
		if info.Latency > latency {
			latency = info.Latency
		}
	}
	return
}

// CheckMemLock reports whether addr is already locked by this AtomOp
// (spec §4.6: "AtomOp reserves up to 4 cache-line lock addresses").
func (a *AtomOp) CheckMemLock(addr uint64) bool {
	for _, l := range a.lockAddrs {
		if l == addr {
			return true
		}
	}
	return false
}

// GrabMemLock reserves addr for this AtomOp, returning false once the
// 4-lock budget is exhausted.
func (a *AtomOp) GrabMemLock(addr uint64) bool {
	if a.CheckMemLock(addr) {
		return true
	}
	if len(a.lockAddrs) >= maxLockAddrs {
		return false
	}
	a.lockAddrs = append(a.lockAddrs, addr)
	return true
}

// ReleaseMemLocks clears every lock this AtomOp holds. The caller (commit
// or annul) is responsible for invoking the cache controller's unlock
// path per address beforehand.
func (a *AtomOp) ReleaseMemLocks() []uint64 {
	released := a.lockAddrs
	a.lockAddrs = nil
	return released
}

// Annul marks the AtomOp discarded and releases its locks immediately
// (spec §4.6: "On annul, locks are released immediately").
func (a *AtomOp) Annul() []uint64 {
	a.State = OpAnnulled
	return a.ReleaseMemLocks()
}
