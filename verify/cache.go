package verify

import (
	"fmt"

	"github.com/sarchlab/marssx86/mesi"
)

// CheckLines validates spec §8's cache invariant: "∀ cache lines L with
// state ≠ I: L's tag is present in at most one way of its set." The
// set-associative design (mesi.Lines.Probe scans a single set by index)
// makes a true duplicate impossible through the normal Insert/Probe path,
// but this walks every set directly so a future code path that bypasses
// Insert (e.g. a hand-rolled fill) cannot silently violate it.
func CheckLines(name string, lines *mesi.Lines) Violations {
	var vs Violations
	for idx := 0; idx < lines.Sets; idx++ {
		seen := make(map[uint64]int)
		for way, line := range lines.SetSnapshot(idx) {
			if !line.Valid || line.State == mesi.Invalid {
				continue
			}
			if prevWay, dup := seen[line.Tag]; dup {
				vs = append(vs, &Violation{
					Invariant: "cache line tag present in at most one way of its set",
					Detail:    fmt.Sprintf("%s set %d: tag 0x%x in ways %d and %d", name, idx, line.Tag, prevWay, way),
				})
				continue
			}
			seen[line.Tag] = way
		}
	}
	return vs
}
