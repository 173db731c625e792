package oocore

import (
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/uop"
)

// EntryState is the state-list a ROB entry is currently linked into
// (spec §8: "R.current_state_list equals the list R is linked into").
type EntryState int

const (
	Dispatched EntryState = iota
	Issued
	Completed
	Written
)

func (s EntryState) String() string {
	switch s {
	case Dispatched:
		return "dispatched"
	case Issued:
		return "issued"
	case Completed:
		return "completed"
	case Written:
		return "written"
	default:
		return "unknown"
	}
}

// Entry is a ReorderBufferEntry: one in-flight uop, its rename mapping,
// and enough state to annul it if speculation fails.
type Entry struct {
	Seq   uint64
	Uop   uop.Uop
	State EntryState

	// OldPhys is the physreg the architectural register mapped to before
	// this uop's rename; NewPhys is the one it now maps to (-1 if this uop
	// writes no register). Commit releases OldPhys; recovery releases
	// NewPhys and restores the speculative RRT from the commit RRT.
	OldPhys int
	NewPhys int

	Exception bool

	// FetchKey identifies the basic block this uop was fetched from and,
	// combined with Uop.BBIndex, lets a NEEDS_REFETCH outcome (spec §4.5,
	// §8 scenario 5) retranslate exactly the block/uop that faulted.
	FetchKey decode.RIPVirtPhys

	// LSQEntry is non-nil for load/store uops, linking this ROB entry to
	// its program-order slot in the Load/Store Queue (spec §3 "Load/Store
	// Queue entry").
	LSQEntry *LSQEntry
	// MemIssued reports whether this entry's memory request has already
	// been sent to Memory; CyclesLeft counts down the latency Memory
	// reported before the entry may complete (spec §4.5: "for loads/
	// stores, generate address... and enqueue the access").
	MemIssued  bool
	CyclesLeft int
}

// ROB is the Reorder Buffer: a bounded FIFO of Entry in program order.
// Unlike the original's intrusive per-state linked lists walked with
// foreach_list_mutable, entries live in one slab-backed slice and recovery
// truncates by sequence number (spec §9: explicit index-based iteration,
// never iterator invalidation over an intrusive list).
type ROB struct {
	capacity int
	entries  []*Entry
	nextSeq  uint64
}

// NewROB creates an empty reorder buffer holding up to capacity entries.
func NewROB(capacity int) *ROB {
	return &ROB{capacity: capacity}
}

// Full reports whether dispatch must stall (spec §4.5: "stall if any
// resource... is full").
func (r *ROB) Full() bool { return len(r.entries) >= r.capacity }

// Len reports how many entries are currently in flight.
func (r *ROB) Len() int { return len(r.entries) }

// Capacity reports the maximum number of in-flight entries, for invariant
// checks (spec §8: "len(ROB) <= ROB_SIZE").
func (r *ROB) Capacity() int { return r.capacity }

// Dispatch appends a new entry in program order and returns it.
func (r *ROB) Dispatch(u uop.Uop, oldPhys, newPhys int) *Entry {
	e := &Entry{Seq: r.nextSeq, Uop: u, State: Dispatched, OldPhys: oldPhys, NewPhys: newPhys}
	r.nextSeq++
	r.entries = append(r.entries, e)
	return e
}

// Head returns the oldest entry, or nil if the ROB is empty.
func (r *ROB) Head() *Entry {
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[0]
}

// CommitHead removes the oldest entry, for use once it is fully Written
// and exception-free (spec §4.5 commit).
func (r *ROB) CommitHead() *Entry {
	if len(r.entries) == 0 {
		return nil
	}
	e := r.entries[0]
	r.entries = r.entries[1:]
	return e
}

// AnnulFrom rewinds the ROB, discarding fromSeq and every younger entry
// (spec §4.5: "ROB rewind from the branch onward" / §7 BranchMispredict).
// It returns the discarded entries, oldest-first, so the caller can
// release their destination physregs and restore the RRT.
func (r *ROB) AnnulFrom(fromSeq uint64) []*Entry {
	for i, e := range r.entries {
		if e.Seq >= fromSeq {
			discarded := r.entries[i:]
			r.entries = r.entries[:i:i]
			return discarded
		}
	}
	return nil
}

// Entries returns the live entries in program order. Callers must treat
// the slice as read-only.
func (r *ROB) Entries() []*Entry { return r.entries }

// Find returns the entry with the given sequence number, or nil if it is
// no longer in flight (already committed or annulled).
func (r *ROB) Find(seq uint64) *Entry {
	for _, e := range r.entries {
		if e.Seq == seq {
			return e
		}
	}
	return nil
}
