// Package oocore implements the out-of-order core pipeline (spec §4.5):
// fetch, rename, dispatch, issue, writeback and commit over a physical
// register file, reorder buffer, per-cluster issue queues, and a
// load/store queue, with a tagged pipeline.Result replacing exceptions
// for recovery (spec §9).
package oocore

// RegState is a physical register's lifecycle state.
type RegState int

const (
	Free RegState = iota
	Allocated
	Bypass
	Written
)

func (s RegState) String() string {
	switch s {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Bypass:
		return "bypass"
	case Written:
		return "written"
	default:
		return "unknown"
	}
}

// RegFile is a round-robin-selected physical register file (spec §4.5
// rename: "allocate destination physreg from the round-robin-selected
// file"). Class names the register class; NewCore builds a single "int"
// file that every renamed uop allocates from.
type RegFile struct {
	Class    string
	state    []RegState
	refcount []int
	free     []int
	data     []uint64
}

// NewRegFile creates a register file with n physical registers, all
// initially free.
func NewRegFile(class string, n int) *RegFile {
	rf := &RegFile{
		Class:    class,
		state:    make([]RegState, n),
		refcount: make([]int, n),
		data:     make([]uint64, n),
		free:     make([]int, n),
	}
	for i := 0; i < n; i++ {
		rf.free[i] = n - 1 - i // pop from the tail, so reg 0 allocates first
	}
	return rf
}

// Alloc reserves a free physreg with refcount 1, or returns (-1, false)
// if the file is exhausted (spec §4.5: "stall if any resource... is
// full").
func (rf *RegFile) Alloc() (int, bool) {
	n := len(rf.free)
	if n == 0 {
		return -1, false
	}
	r := rf.free[n-1]
	rf.free = rf.free[:n-1]
	rf.state[r] = Allocated
	rf.refcount[r] = 1
	return r, true
}

// Acquire increments a physreg's refcount (a second RRT slot now points
// at it).
func (rf *RegFile) Acquire(r int) { rf.refcount[r]++ }

// Release decrements a physreg's refcount; at zero the register returns
// to the free list (spec §8: "P.state=FREE ⇔ P.refcount=0 ∧ P ∉ any
// RRT").
func (rf *RegFile) Release(r int) {
	rf.refcount[r]--
	if rf.refcount[r] <= 0 {
		rf.refcount[r] = 0
		rf.state[r] = Free
		rf.free = append(rf.free, r)
	}
}

// SetWritten transitions r from Bypass to Written once its producing uop
// reaches writeback.
func (rf *RegFile) SetWritten(r int) { rf.state[r] = Written }

// Complete moves r into Bypass once its producer finishes execution and
// broadcasts the result.
func (rf *RegFile) Complete(r int, value uint64) {
	rf.data[r] = value
	rf.state[r] = Bypass
}

// State reports r's current lifecycle state.
func (rf *RegFile) State(r int) RegState { return rf.state[r] }

// Value reads r's last-completed value.
func (rf *RegFile) Value(r int) uint64 { return rf.data[r] }

// Free reports how many physregs are currently unallocated.
func (rf *RegFile) Free() int { return len(rf.free) }

// Len reports the total number of physregs in the file.
func (rf *RegFile) Len() int { return len(rf.state) }

// Refcount reports r's current reference count, for invariant checks
// (spec §8: "P.state=FREE ⇔ P.refcount=0 ∧ P ∉ any RRT").
func (rf *RegFile) Refcount(r int) int { return rf.refcount[r] }
