// Package verify checks the universal invariants spec §8 states over the
// timing core's live state (ROB, physical register file, private caches,
// directory) and implements checker-mode shadow-context equality (spec §7
// "Checker mode"). A violation is never silent (spec §7): callers get a
// named Violation they can print or fail a test on; cmd/marssx86 and test
// harnesses decide what "halts with a dumped core state" means for them.
package verify

import "fmt"

// Violation names one broken invariant, carrying enough context to dump a
// diagnostic (spec §7: "any unrecoverable inconsistency... halts with a
// dumped core state and a named diagnostic").
type Violation struct {
	Invariant string
	Detail    string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
}

// Violations collects every broken invariant a single check pass found,
// so a caller can report all of them instead of stopping at the first.
type Violations []*Violation

func (vs Violations) Error() string {
	if len(vs) == 0 {
		return "no violations"
	}
	s := fmt.Sprintf("%d invariant violation(s):", len(vs))
	for _, v := range vs {
		s += "\n  " + v.Error()
	}
	return s
}

// OK reports whether no violation was recorded.
func (vs Violations) OK() bool { return len(vs) == 0 }
