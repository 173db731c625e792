// Package mesi implements the per-core private cache controller (spec
// §4.3): a set-associative cache with a MESI line state machine, snoop
// handling on the lower interconnect, and pseudo-LRU replacement.
package mesi

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sarchlab/marssx86/interconnect"
)

// State is a cache line's MESI state.
type State int

const (
	Invalid State = iota
	Exclusive
	Shared
	Modified
)

// stateCaser title-cases the raw state names below, the same
// cases.Title(language.English) normalization the teacher applies to its
// own direction names (core/emu.go: toTitleCase, titleCaser).
var stateCaser = cases.Title(language.English)

var rawStateName = [...]string{"invalid", "exclusive", "shared", "modified"}

// String returns the state's display name ("Invalid", "Exclusive",
// "Shared", "Modified"), used by verify's diagnostic dump table.
func (s State) String() string {
	if int(s) < 0 || int(s) >= len(rawStateName) {
		return "Unknown"
	}
	return stateCaser.String(rawStateName[s])
}

// LocalTransition applies the fixed MESI table (spec §4.3) for a request
// originated by this controller's own core. isShared reports whether the
// fill response indicated another cache also holds the line, which
// decides the I-state miss outcome between Exclusive and Shared.
func LocalTransition(old State, op interconnect.MemOpType, isShared bool) (next State, miss bool) {
	switch old {
	case Invalid:
		switch op {
		case interconnect.OpRead:
			if isShared {
				return Shared, true
			}
			return Exclusive, true
		case interconnect.OpWrite:
			return Modified, true
		default:
			return Invalid, false
		}
	case Exclusive:
		switch op {
		case interconnect.OpRead:
			return Exclusive, false
		case interconnect.OpWrite:
			return Modified, false
		case interconnect.OpEvict:
			return Invalid, false
		}
	case Shared:
		switch op {
		case interconnect.OpRead:
			return Shared, false
		case interconnect.OpWrite:
			return Modified, true // invalidates peers, counts as a miss
		case interconnect.OpEvict:
			return Invalid, false
		}
	case Modified:
		switch op {
		case interconnect.OpRead, interconnect.OpWrite:
			return Modified, false
		case interconnect.OpEvict:
			return Invalid, false
		}
	}
	return old, false
}

// SnoopTransition applies the fixed MESI table for a request observed on
// the lower interconnect that targets a line this controller holds. It
// reports the new state, whether this controller must respond isShared,
// and whether the reply carries a writeback of the line's data (the
// controller sets HasData on its snoop reply; no separate UPDATE is sent).
func SnoopTransition(old State, op interconnect.MemOpType, isLowestPrivate bool) (next State, respondShared bool, writeback bool) {
	switch old {
	case Invalid:
		return Invalid, false, false
	case Exclusive:
		switch op {
		case interconnect.OpRead:
			return Shared, true, false
		case interconnect.OpWrite:
			return Invalid, false, false
		case interconnect.OpEvict:
			return Invalid, false, isLowestPrivate
		}
	case Shared:
		switch op {
		case interconnect.OpRead:
			return Shared, true, false
		case interconnect.OpWrite, interconnect.OpEvict:
			return Invalid, false, false
		}
	case Modified:
		switch op {
		case interconnect.OpRead:
			return Shared, true, true
		case interconnect.OpWrite:
			return Invalid, false, true
		case interconnect.OpEvict:
			return Invalid, false, true
		}
	}
	return old, false, false
}
