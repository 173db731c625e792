package verify

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/marssx86/oocore"
)

// DumpROB prints the reorder buffer's current contents as a table, the
// "dumped core state" spec §7 requires alongside a named diagnostic when
// an unrecoverable inconsistency halts the simulation. Grounded on the
// teacher's register/buffer table dump in its own diagnostic printer
// (go-pretty/v6/table, AppendHeader/AppendRow/Render).
func DumpROB(w io.Writer, rob *oocore.ROB) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Seq", "State", "OldPhys", "NewPhys", "Exception"})
	for _, e := range rob.Entries() {
		t.AppendRow(table.Row{e.Seq, e.State.String(), e.OldPhys, e.NewPhys, e.Exception})
	}
	t.Render()
}

// DumpRegFile prints every physreg's lifecycle state and refcount.
func DumpRegFile(w io.Writer, rf *oocore.RegFile) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Class", "Reg", "State", "Refcount", "Value"})
	for r := 0; r < rf.Len(); r++ {
		t.AppendRow(table.Row{rf.Class, r, rf.State(r).String(), rf.Refcount(r), rf.Value(r)})
	}
	t.Render()
}

// DumpViolations prints every recorded violation as a table.
func DumpViolations(w io.Writer, vs Violations) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Invariant", "Detail"})
	for _, v := range vs {
		t.AppendRow(table.Row{v.Invariant, v.Detail})
	}
	t.Render()
}
