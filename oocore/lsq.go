package oocore

import "github.com/sarchlab/marssx86/uop"

// LSQEntry is a LoadStoreQueueEntry (glossary: LSQ): one in-flight memory
// uop, in program order, with enough address/data state to support
// store-to-load forwarding.
type LSQEntry struct {
	Seq       uint64
	IsStore   bool
	Addr      uint64
	AddrKnown bool
	Size      uop.Size
	Data      uint64
	Committed bool
}

func overlaps(a1 uint64, s1 uop.Size, a2 uint64, s2 uop.Size) bool {
	end1 := a1 + uint64(s1.Bytes())
	end2 := a2 + uint64(s2.Bytes())
	return a1 < end2 && a2 < end1
}

// fullyCovers reports whether a store at (storeAddr, storeSize) contains
// every byte a load at (loadAddr, loadSize) needs.
func fullyCovers(storeAddr uint64, storeSize uop.Size, loadAddr uint64, loadSize uop.Size) bool {
	return loadAddr >= storeAddr && loadAddr+uint64(loadSize.Bytes()) <= storeAddr+uint64(storeSize.Bytes())
}

// LSQ is the Load/Store Queue (spec §4.5 "Load/store specifics"): an
// in-order buffer of memory uops that resolves store-to-load forwarding
// by byte mask and stalls loads against stores with unknown addresses.
type LSQ struct {
	Capacity int
	entries  []*LSQEntry
}

// NewLSQ creates an empty load/store queue with the given capacity.
func NewLSQ(capacity int) *LSQ {
	return &LSQ{Capacity: capacity}
}

// Full reports whether dispatch of a new memory uop must stall.
func (q *LSQ) Full() bool { return len(q.entries) >= q.Capacity }

// Append adds a new entry in program order.
func (q *LSQ) Append(e *LSQEntry) { q.entries = append(q.entries, e) }

// Remove drops e once its uop commits.
func (q *LSQ) Remove(e *LSQEntry) {
	for i, x := range q.entries {
		if x == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// ForwardResult reports the outcome of checking a load against older
// in-flight stores.
type ForwardResult int

const (
	// NoForward: no older store overlaps; read from the cache/memory.
	NoForward ForwardResult = iota
	// Forwarded: an older store with a known address fully covers the
	// load; its buffered data satisfies the load directly.
	Forwarded
	// Ambiguous: an older store's address isn't known yet, or partially
	// overlaps without fully covering the load; the load must wait (spec
	// §4.5: "on ambiguity, load waits").
	Ambiguous
)

// CheckForward implements store-to-load forwarding for load (spec §4.5:
// "loads check against older stores with known addresses... on ambiguity,
// load waits"). It scans backward from the nearest older entry so the
// most recent overlapping store wins.
func (q *LSQ) CheckForward(load *LSQEntry) (ForwardResult, uint64) {
	for i := len(q.entries) - 1; i >= 0; i-- {
		s := q.entries[i]
		if !s.IsStore || s.Seq >= load.Seq {
			continue
		}
		if !s.AddrKnown {
			return Ambiguous, 0
		}
		if !overlaps(s.Addr, s.Size, load.Addr, load.Size) {
			continue
		}
		if fullyCovers(s.Addr, s.Size, load.Addr, load.Size) {
			return Forwarded, s.Data
		}
		return Ambiguous, 0
	}
	return NoForward, 0
}

// Len reports how many entries remain in the queue.
func (q *LSQ) Len() int { return len(q.entries) }
