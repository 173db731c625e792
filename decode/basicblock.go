// Package decode models the decoder boundary the timing core consumes:
// RIPVirtPhys identity, the BasicBlock payload, and the per-CPU
// BasicBlockCache with SMC invalidation (spec §3, §6).
package decode

import (
	"fmt"

	"github.com/sarchlab/marssx86/uop"
)

const (
	// PageSize is the guest physical page size basic blocks are chunked
	// against for SMC tracking.
	PageSize = 4096

	// MaxUopsPerBB bounds a basic block's uop payload (spec §3).
	MaxUopsPerBB = 63
)

// RIPVirtPhys is a basic block's identity: its virtual RIP plus the guest
// physical frame numbers of the page(s) it spans, plus the execution mode
// bits that affect decoding (spec §3).
type RIPVirtPhys struct {
	RIP     uint64
	MfnLo   uint64
	MfnHi   uint64
	Use64   bool
	Kernel  bool
	DF      bool // x86 direction flag, affects string-op decoding
}

func pageOf(addr uint64) uint64 { return addr / PageSize }

// NewRIPVirtPhys computes the identity for a basic block starting at rip,
// given the guest-physical address of its first byte and its byte length.
// mfnLo/mfnHi degenerate to the same page when the block does not cross a
// page boundary, per the spec §3 invariant.
func NewRIPVirtPhys(rip, physStart uint64, lengthBytes int, use64, kernel, df bool) RIPVirtPhys {
	mfnLo := pageOf(physStart)
	mfnHi := pageOf(physStart + uint64(lengthBytes) - 1)
	return RIPVirtPhys{RIP: rip, MfnLo: mfnLo, MfnHi: mfnHi, Use64: use64, Kernel: kernel, DF: df}
}

// SpansOnePage reports whether the block fits in a single guest page.
func (k RIPVirtPhys) SpansOnePage() bool { return k.MfnLo == k.MfnHi }

func (k RIPVirtPhys) String() string {
	return fmt.Sprintf("rip=%#x mfn=[%#x,%#x] use64=%v kernel=%v df=%v",
		k.RIP, k.MfnLo, k.MfnHi, k.Use64, k.Kernel, k.DF)
}

// BranchType classifies how a basic block terminates, independent of any
// one uop's own BranchType (spec §3: "branch-type classification (8
// variants)").
type BranchType = uop.BranchType

// BasicBlock is the unit of translation: a straight-line uop sequence
// between control-transfer boundaries (spec §3).
type BasicBlock struct {
	Key RIPVirtPhys

	Uops []uop.Uop

	RipTaken    uint64
	RipNotTaken uint64
	Branch      BranchType

	Bytes     int
	UserInsns int
	NumUops   int

	HasMfence       bool
	HasX87          bool
	HasSSE          bool
	Nondeterministic bool

	refcount int

	HitCount     uint64
	PredictCount uint64
}

// NewBasicBlock validates and wraps a decoded uop stream.
func NewBasicBlock(key RIPVirtPhys, uops []uop.Uop, ripTaken, ripNotTaken uint64, branch BranchType) (*BasicBlock, error) {
	if len(uops) > MaxUopsPerBB {
		return nil, fmt.Errorf("decode: basic block at %s overflows %d uops (got %d)", key, MaxUopsPerBB, len(uops))
	}

	bb := &BasicBlock{
		Key:         key,
		Uops:        uops,
		RipTaken:    ripTaken,
		RipNotTaken: ripNotTaken,
		Branch:      branch,
		NumUops:     len(uops),
	}
	for i := range bb.Uops {
		bb.Uops[i].BBIndex = i
		switch bb.Uops[i].Opcode.Opclass() {
		case uop.OpclassFPAlu, uop.OpclassFPCvt:
			bb.HasX87 = true
		case uop.OpclassVec:
			bb.HasSSE = true
		}
		if bb.Uops[i].SOM {
			bb.UserInsns++
		}
	}
	return bb, nil
}

// Acquire increments the block's refcount; the core acquires a reference on
// every fetch.
func (bb *BasicBlock) Acquire() { bb.refcount++ }

// Release decrements the block's refcount; the core releases it on
// eviction. Returns the refcount after release.
func (bb *BasicBlock) Release() int {
	bb.refcount--
	return bb.refcount
}

// Pages returns the one or two guest page frame numbers this block spans.
func (bb *BasicBlock) Pages() []uint64 {
	if bb.Key.SpansOnePage() {
		return []uint64{bb.Key.MfnLo}
	}
	return []uint64{bb.Key.MfnLo, bb.Key.MfnHi}
}

// SplitUnalignedAt replaces the uop at index with the lo/hi half-uops
// uop.Uop.SplitUnaligned produces, re-numbering every uop's BBIndex
// afterward (spec §4.5: "Unaligned accesses are split at translation
// time by marking the uop unaligned and re-translating into lo/hi
// halves"; spec §8 scenario 5).
func (bb *BasicBlock) SplitUnalignedAt(index int) error {
	if index < 0 || index >= len(bb.Uops) {
		return fmt.Errorf("decode: split index %d out of range for block %s", index, bb.Key)
	}
	if len(bb.Uops)+1 > MaxUopsPerBB {
		return fmt.Errorf("decode: splitting uop %d at %s would overflow %d uops", index, bb.Key, MaxUopsPerBB)
	}

	lo, hi := bb.Uops[index].SplitUnaligned()
	rest := append([]uop.Uop{}, bb.Uops[index+1:]...)
	bb.Uops = append(append(bb.Uops[:index:index], lo, hi), rest...)
	bb.NumUops = len(bb.Uops)
	for i := range bb.Uops {
		bb.Uops[i].BBIndex = i
	}
	return nil
}
