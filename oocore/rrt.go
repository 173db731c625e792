package oocore

import "github.com/sarchlab/marssx86/uop"

// RRT is a Register Rename Table (spec glossary): architectural register
// name -> physical register index. Each thread keeps a speculative RRT
// (updated at rename) and a commit RRT (updated at commit); recovery
// restores the speculative RRT from the commit RRT (spec §4.5 rename:
// "Mispredicted branches trigger annul_fetchq plus ROB rewind... restoring
// speculative RRT from commit RRT + walk").
type RRT struct {
	table [uop.NumLogicalRegs]int
}

// NewRRT creates an RRT with every architectural register unmapped (-1):
// no physreg holds it yet, so a source read through it takes the
// architectural value and is ready at once.
func NewRRT() *RRT {
	rrt := &RRT{}
	for i := range rrt.table {
		rrt.table[i] = -1
	}
	return rrt
}

// Get returns the physreg currently mapped to r.
func (t *RRT) Get(r uop.Reg) int {
	if r == uop.NoReg {
		return -1
	}
	return t.table[r]
}

// Set remaps r to physreg p.
func (t *RRT) Set(r uop.Reg, p int) {
	if r == uop.NoReg {
		return
	}
	t.table[r] = p
}

// CopyFrom overwrites every mapping with src's, the "restore speculative
// RRT from commit RRT" step of branch-misprediction recovery.
func (t *RRT) CopyFrom(src *RRT) { t.table = src.table }

// Contains reports whether any architectural register currently maps to
// physreg p, for invariant checks (spec §8: "P.state=FREE ⇔
// P.refcount=0 ∧ P ∉ any RRT").
func (t *RRT) Contains(p int) bool {
	for _, mapped := range t.table {
		if mapped == p {
			return true
		}
	}
	return false
}
