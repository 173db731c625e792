package iocore

import "github.com/sarchlab/marssx86/context"

// AtomThread is one hardware thread's slice of shared in-order pipeline
// state: its dispatch queue, commit buffer, store buffer and in-flight
// branch counter (spec §4.6: "a shared frontend... feeding a per-thread
// dispatch queue, per-thread commit buffer, per-thread store buffer").
type AtomThread struct {
	ThreadID int
	Ctx      *context.Context

	DispatchQueue []*AtomOp
	CommitBuffer  []*AtomOp
	Store         *StoreBuffer

	dispatchCapacity int
	commitCapacity   int

	BranchesInFlight    int
	MaxBranchesInFlight int

	// WaitingForICache marks a thread that yielded the shared frontend
	// after an icache (L2) miss (spec §4.6: "Threads switch cooperatively
	// on L2 miss: a thread marked 'waiting for icache' yields").
	WaitingForICache bool
}

// NewAtomThread creates a thread with the given dispatch-queue, commit-
// buffer, store-buffer and in-flight-branch capacities.
func NewAtomThread(id int, ctx *context.Context, dispatchCapacity, commitCapacity, storeCapacity, maxBranchesInFlight int) *AtomThread {
	return &AtomThread{
		ThreadID:            id,
		Ctx:                 ctx,
		dispatchCapacity:    dispatchCapacity,
		commitCapacity:      commitCapacity,
		Store:               NewStoreBuffer(storeCapacity),
		MaxBranchesInFlight: maxBranchesInFlight,
	}
}

// CanFetch reports whether this thread may have more AtomOps fetched into
// it: it must not be waiting on the icache, must have dispatch-queue room,
// and must not already have the maximum number of unresolved branches in
// flight (spec §4.6: "a counter bounds in-flight unresolved branches;
// exceeding it stalls fetch").
func (t *AtomThread) CanFetch() bool {
	if t.WaitingForICache {
		return false
	}
	if len(t.DispatchQueue) >= t.dispatchCapacity {
		return false
	}
	return t.BranchesInFlight < t.MaxBranchesInFlight
}

// Enqueue appends a freshly fetched AtomOp to the dispatch queue,
// tracking it in the branch-in-flight counter if it is a branch.
func (t *AtomThread) Enqueue(op *AtomOp) {
	t.DispatchQueue = append(t.DispatchQueue, op)
	if op.IsBranch() {
		t.BranchesInFlight++
	}
}

// DispatchFront moves the oldest dispatch-queue entry to the commit
// buffer once it has room, returning it for issue.
func (t *AtomThread) DispatchFront() (*AtomOp, bool) {
	if len(t.DispatchQueue) == 0 {
		return nil, false
	}
	if len(t.CommitBuffer) >= t.commitCapacity {
		return nil, false
	}
	op := t.DispatchQueue[0]
	t.DispatchQueue = t.DispatchQueue[1:]
	op.State = OpDispatched
	t.CommitBuffer = append(t.CommitBuffer, op)
	return op, true
}

// CommitHead reports the oldest not-yet-committed AtomOp, or nil.
func (t *AtomThread) CommitHead() *AtomOp {
	if len(t.CommitBuffer) == 0 {
		return nil
	}
	return t.CommitBuffer[0]
}

// PopCommitted removes the head of the commit buffer after it commits,
// decrementing the branch counter if it resolved one.
func (t *AtomThread) PopCommitted() *AtomOp {
	op := t.CommitBuffer[0]
	t.CommitBuffer = t.CommitBuffer[1:]
	if op.IsBranch() {
		t.BranchesInFlight--
	}
	return op
}

// FlushFrontend discards the dispatch queue, releasing any memory locks
// its AtomOps hold immediately, and resets the in-flight branch counter;
// the commit buffer is left untouched. AnnulFrom calls it for branch
// misprediction recovery (spec §4.6: "Mispredict drains the frontend and
// the dispatch queue belonging to the faulting thread").
func (t *AtomThread) FlushFrontend() (releasedLocks []uint64) {
	for _, op := range t.DispatchQueue {
		releasedLocks = append(releasedLocks, op.Annul()...)
	}
	t.DispatchQueue = nil
	t.BranchesInFlight = 0
	return releasedLocks
}

// AnnulFrom discards every AtomOp in the commit buffer from (and
// including) position index onward, releasing their locks
// immediately, then drains the dispatch queue behind it too.
func (t *AtomThread) AnnulFrom(index int) (releasedLocks []uint64) {
	for i := index; i < len(t.CommitBuffer); i++ {
		releasedLocks = append(releasedLocks, t.CommitBuffer[i].Annul()...)
	}
	t.CommitBuffer = t.CommitBuffer[:index]
	releasedLocks = append(releasedLocks, t.FlushFrontend()...)
	return releasedLocks
}
