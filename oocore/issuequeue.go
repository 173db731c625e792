package oocore

// Cluster names an execution cluster a uop can be dispatched to (spec
// §4.5 dispatch: "Select cluster (int0, int1, ld, fp when MULTI_IQ; else
// all) based on uop opclass and cluster masks").
type Cluster int

const (
	ClusterAll Cluster = iota
	ClusterInt0
	ClusterInt1
	ClusterLd
	ClusterFP
)

// Slot is one issue-queue occupant: a ROB entry plus the readiness of its
// (up to two) source operands, tracked by physreg tag rather than by
// value (spec §4.5 issue: "dependents with matching source tags
// unblock").
type Slot struct {
	Entry       *Entry
	SrcPhys     [2]int
	SrcReady    [2]bool
	Issued      bool
}

// Ready reports whether every source this slot needs has arrived.
func (s *Slot) Ready() bool {
	for i := range s.SrcPhys {
		if s.SrcPhys[i] >= 0 && !s.SrcReady[i] {
			return false
		}
	}
	return true
}

// IssueQueue is a per-cluster wake-on-tag-broadcast scheduling structure
// (glossary: Issue Queue). Arbitration here is oldest-ready-first, a
// simplification of the original's configurable arbiter that still
// satisfies program-order-biased issue.
type IssueQueue struct {
	Cluster  Cluster
	Capacity int
	Width    int // cluster-issue-width: max slots issued per cycle

	slots []*Slot
}

// NewIssueQueue creates an issue queue for cluster with the given
// capacity and per-cycle issue width.
func NewIssueQueue(cluster Cluster, capacity, width int) *IssueQueue {
	return &IssueQueue{Cluster: cluster, Capacity: capacity, Width: width}
}

// Full reports whether dispatch to this cluster must stall.
func (q *IssueQueue) Full() bool { return len(q.slots) >= q.Capacity }

// Insert adds a dispatched entry with its source-operand readiness.
func (q *IssueQueue) Insert(e *Entry, srcPhys [2]int, srcReady [2]bool) {
	q.slots = append(q.slots, &Slot{Entry: e, SrcPhys: srcPhys, SrcReady: srcReady})
}

// Wake marks every slot waiting on physreg tag as having that source
// ready, the forwarding-bus broadcast from a completed producer.
func (q *IssueQueue) Wake(tag int) {
	for _, s := range q.slots {
		for i, p := range s.SrcPhys {
			if p == tag {
				s.SrcReady[i] = true
			}
		}
	}
}

// SelectReady removes and returns up to Width ready, not-yet-issued slots
// in FIFO (oldest-first) order.
func (q *IssueQueue) SelectReady() []*Slot {
	var picked []*Slot
	var remaining []*Slot

	for _, s := range q.slots {
		if len(picked) < q.Width && !s.Issued && s.Ready() {
			s.Issued = true
			picked = append(picked, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	q.slots = remaining
	return picked
}

// Requeue returns a slot that needs replay (ISSUE_NEEDS_REPLAY) back into
// the queue with its issued bit cleared (spec §4.5: "Needs-replay clears
// only the slot's issued bit").
func (q *IssueQueue) Requeue(s *Slot) {
	s.Issued = false
	q.slots = append(q.slots, s)
}

// Len reports how many slots are currently occupied.
func (q *IssueQueue) Len() int { return len(q.slots) }
