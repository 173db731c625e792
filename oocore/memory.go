package oocore

// MemOp distinguishes a load from a store at the Memory boundary, the
// same two operations machine.Hierarchy.Access accepts via
// interconnect.MemOpType (spec §2: "access(request) -> latency").
type MemOp int

const (
	MemRead MemOp = iota
	MemWrite
)

// Memory is the subset of machine.Hierarchy's access(request) -> latency
// contract (spec §2) a pipeline's issue stage needs to drive load/store
// uops through the cache hierarchy instead of completing them in zero
// cycles. Kept narrow and defined here (rather than importing the machine
// package, which already imports oocore) so oocore/iocore stay leaves of
// the dependency graph (spec §9: "dependencies flow leaves-first").
type Memory interface {
	// Access issues a memory request for coreID at address and reports the
	// latency in cycles until it completes. ok is false when the cache's
	// pending-request queue is full and the caller must retry the same
	// uop next cycle (spec §4.3 backpressure).
	Access(coreID int, address uint64, op MemOp) (latency uint64, ok bool)
}
