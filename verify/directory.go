package verify

import (
	"fmt"

	"github.com/sarchlab/marssx86/directory"
)

// CheckDirectory validates spec §8's directory invariants: "D.dirty=1 =>
// popcount(D.present)=1" and "D.owner >= 0 => D.present[D.owner]=1", over
// every live entry in store.
func CheckDirectory(store *directory.Store) Violations {
	var vs Violations
	for _, e := range store.Entries() {
		if e.Dirty && e.Present.Count() != 1 {
			vs = append(vs, &Violation{
				Invariant: "dirty=1 => popcount(present)=1",
				Detail:    fmt.Sprintf("tag=0x%x dirty present.count()=%d", e.Tag, e.Present.Count()),
			})
		}
		if e.Owner != directory.NoOwner && !e.Present.Has(e.Owner) {
			vs = append(vs, &Violation{
				Invariant: "owner >= 0 => present[owner]=1",
				Detail:    fmt.Sprintf("tag=0x%x owner=%d not in present", e.Tag, e.Owner),
			})
		}
	}
	return vs
}
