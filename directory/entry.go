// Package directory implements the global sparse directory controller
// (spec §4.4): one entry per cached line at the LLC boundary, coordinating
// the private mesi.Controllers so at most one cache holds a line Modified
// at a time.
package directory

import "math/bits"

// Presence is a bitset of which caches (by controller index) hold a line,
// mirroring the original DirectoryEntry::present bitvector.
type Presence uint64

func (p Presence) Has(cache int) bool   { return p&(1<<uint(cache)) != 0 }
func (p Presence) Count() int           { return bits.OnesCount64(uint64(p)) }
func (p Presence) Empty() bool          { return p == 0 }
func (p *Presence) Set(cache int)       { *p |= 1 << uint(cache) }
func (p *Presence) Clear(cache int)     { *p &^= 1 << uint(cache) }
func (p Presence) LSB() int {
	if p == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(p))
}

// Entry is a DirectoryEntry (spec §3/§4.4): Tag identifies the line;
// Present tracks which caches hold it; Owner is the exclusive/modified
// holder, or -1; Dirty marks the owner's copy as the only up-to-date one;
// Locked blocks new read/write lookups until a write-miss invalidation
// round completes.
type Entry struct {
	Tag     uint64
	Present Presence
	Owner   int
	Dirty   bool
	Locked  bool
}

// NoOwner is the sentinel for Entry.Owner when no cache owns the line.
const NoOwner = -1

// Reset clears entry to its free-slot state.
func (e *Entry) Reset() {
	*e = Entry{Owner: NoOwner}
}

// Init prepares entry for reuse with a new tag.
func (e *Entry) Init(tag uint64) {
	*e = Entry{Tag: tag, Owner: NoOwner}
}

// CheckInvariants validates that owner is either absent or present. It
// does not look at Locked (callers check that themselves before a lookup)
// or at Dirty, and the one-bit-per-cache rule needs no check because
// Presence is a bitset.
func (e *Entry) CheckInvariants() bool {
	if e.Owner != NoOwner && !e.Present.Has(e.Owner) {
		return false
	}
	return true
}
