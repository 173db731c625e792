package verify

import (
	"fmt"

	"github.com/sarchlab/marssx86/oocore"
)

// CheckRegFile validates spec §8's physical-register invariant:
// "∀ physregs P: P.refcount ≥ 0; P.state=FREE ⇔ P.refcount=0 ∧ P ∉ any
// RRT". rrts is every RRT (speculative and commit, across however many
// threads share this file) that might still reference a physreg.
func CheckRegFile(rf *oocore.RegFile, rrts ...*oocore.RRT) Violations {
	var vs Violations
	for p := 0; p < rf.Len(); p++ {
		if rf.Refcount(p) < 0 {
			vs = append(vs, &Violation{
				Invariant: "physreg.refcount >= 0",
				Detail:    fmt.Sprintf("%s physreg %d has refcount %d", rf.Class, p, rf.Refcount(p)),
			})
		}

		referenced := false
		for _, rrt := range rrts {
			if rrt.Contains(p) {
				referenced = true
				break
			}
		}

		isFree := rf.State(p) == oocore.Free
		if isFree && (rf.Refcount(p) != 0 || referenced) {
			vs = append(vs, &Violation{
				Invariant: "physreg.state=FREE <=> refcount=0 and not in any RRT",
				Detail:    fmt.Sprintf("%s physreg %d is FREE but refcount=%d referenced=%v", rf.Class, p, rf.Refcount(p), referenced),
			})
		}
		if !isFree && rf.Refcount(p) == 0 && !referenced {
			vs = append(vs, &Violation{
				Invariant: "physreg.state=FREE <=> refcount=0 and not in any RRT",
				Detail:    fmt.Sprintf("%s physreg %d has refcount=0 and no RRT reference but state=%v", rf.Class, p, rf.State(p)),
			})
		}
	}
	return vs
}

// CheckROB validates spec §8's ROB ordering invariant in this model's
// terms: entries are held in one program-order slab (never an intrusive
// list a caller could desync), so the only thing left to check is that
// the slab's sequence numbers are strictly increasing and bounded by
// capacity — a desynced state-list pointer is structurally impossible
// here (spec §9's slab-and-index departure), but a corrupted Seq ordering
// would be the Go-shaped analogue of that original bug class.
func CheckROB(rob *oocore.ROB) Violations {
	var vs Violations
	if rob.Len() > rob.Capacity() {
		vs = append(vs, &Violation{
			Invariant: "len(ROB) <= ROB.Capacity()",
			Detail:    fmt.Sprintf("len=%d capacity=%d", rob.Len(), rob.Capacity()),
		})
	}

	entries := rob.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			vs = append(vs, &Violation{
				Invariant: "ROB entries are in strictly increasing program order",
				Detail:    fmt.Sprintf("entry %d has Seq=%d, not greater than entry %d's Seq=%d", i, entries[i].Seq, i-1, entries[i-1].Seq),
			})
		}
	}
	return vs
}
