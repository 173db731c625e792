// Package pipeline defines the tagged result type both cores use to
// report a uop's outcome, replacing the original engine's exception-based
// recovery (spec §9: "represent pipeline outcomes as a tagged result
// type... never throw across callbacks").
package pipeline

import "github.com/sarchlab/marssx86/context"

// Kind tags the outcome of attempting to issue or commit a uop.
type Kind int

const (
	// Ok: the uop completed normally; no recovery action needed.
	Ok Kind = iota
	// Replay: a resource wasn't ready (port, cache miss in flight); clear
	// only the slot's issued bit and retry later.
	Replay
	// Misspec: a branch resolved against its prediction, or a load
	// observed a store it should have forwarded from; redispatch the
	// dependent slice.
	Misspec
	// Refetch: the uop must be re-decoded (unaligned access split, SMC
	// invalidation) before it can be retried.
	Refetch
	// Skip: an idempotent block should simply be retried from its start.
	Skip
	// Fault: an x86 exception must be surfaced to the functional emulator.
	Fault
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Replay:
		return "replay"
	case Misspec:
		return "misspec"
	case Refetch:
		return "refetch"
	case Skip:
		return "skip"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Result is what an issue or commit attempt returns in place of throwing.
// Only the fields relevant to Kind are meaningful.
type Result struct {
	Kind Kind

	// Misspec / Refetch: the uop index (ROB slot or AtomOp sequence
	// number) from which recovery must annul/redispatch.
	FromIndex int

	// Misspec / Refetch: the fetch RIP to resume from.
	RedirectRIP uint64

	// Fault: the x86 exception to hand to the functional emulator.
	Exception context.ExceptionKind
	FaultAddr uint64
}

// IsRecoverableLocally reports whether the pipeline can absorb this
// result without draining to the functional emulator (spec §7:
// "non-fatal kinds... are recovered locally within the pipeline").
func (r Result) IsRecoverableLocally() bool {
	switch r.Kind {
	case Replay, Misspec, Refetch, Skip:
		return true
	default:
		return false
	}
}
