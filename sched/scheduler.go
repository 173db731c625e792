// Package sched implements the MARSS timing core's Event Scheduler
// (spec §4.1): a single process-wide priority queue keyed by
// (fire_cycle, insertion_order), advancing one logical clock, sim_cycle,
// shared by every core and controller in the machine.
//
// It is built as a github.com/sarchlab/akita/v4/sim.TickingComponent the
// way the teacher's Core and Driver are (core/builder.go, api/builder.go):
// the akita engine drives Scheduler.Tick once per cycle, and the
// scheduler's own heap of pending Events is what the spec calls
// add_event/run_cycle. A callback that needs to retry later returns false
// from its Signal func and the scheduler re-queues it one cycle out, the
// same idiom the teacher's Core.Tick uses for port backpressure.
package sched

import (
	"container/heap"

	"github.com/sarchlab/akita/v4/sim"
)

// Signal is a named callback a component registers once and then targets
// by repeated AddEvent calls, mirroring the original engine's named-signal
// dispatch.
type Signal struct {
	Name string
	Fn   func(arg interface{}) bool
}

// pendingEvent is one entry in the scheduler's priority queue.
type pendingEvent struct {
	fireCycle uint64
	seq       uint64 // insertion order, breaks ties within the same cycle
	signal    *Signal
	arg       interface{}
	annuled   bool
	index     int // heap index, maintained by container/heap
}

type eventHeap []*pendingEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].fireCycle != h[j].fireCycle {
		return h[i].fireCycle < h[j].fireCycle
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *eventHeap) Push(x interface{}) {
	e := x.(*pendingEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler owns sim_cycle and the pending-event heap. It has no
// process-wide singleton state (spec §9): every Machine constructs its own
// Scheduler.
type Scheduler struct {
	*sim.TickingComponent

	cycle uint64
	heap  eventHeap
	seq   uint64
}

// NewScheduler creates a scheduler driven by engine at freq.
func NewScheduler(name string, engine sim.Engine, freq sim.Freq) *Scheduler {
	s := &Scheduler{}
	s.TickingComponent = sim.NewTickingComponent(name, engine, freq, s)
	return s
}

// Cycle returns sim_cycle, the scheduler's logical clock.
func (s *Scheduler) Cycle() uint64 { return s.cycle }

// AddEvent enqueues signal to fire delay cycles from now with arg as its
// payload, returning a cancellation handle. delay=0 added from inside a
// callback fires in the current Tick's drain, after every event already
// queued for this cycle; added between Ticks it fires in the next Tick
// (FIFO order is preserved by insertion sequence, per spec §4.1).
func (s *Scheduler) AddEvent(signal *Signal, delay uint64, arg interface{}) *Handle {
	e := &pendingEvent{
		fireCycle: s.cycle + delay,
		seq:       s.seq,
		signal:    signal,
		arg:       arg,
	}
	s.seq++
	heap.Push(&s.heap, e)
	return &Handle{e: e}
}

// Handle lets a caller cancel a pending event before it fires.
type Handle struct{ e *pendingEvent }

// Annul marks the underlying event cancelled; its callback never runs.
func (h *Handle) Annul() { h.e.annuled = true }

// Tick advances sim_cycle by one and drains every event with
// fire_cycle <= sim_cycle in FIFO order, implementing run_cycle (spec
// §4.1). A callback returning false is rescheduled one cycle later with
// the same argument — the canonical backpressure idiom.
func (s *Scheduler) Tick(now sim.VTimeInSec) bool {
	s.cycle++
	madeProgress := false

	for s.heap.Len() > 0 && s.heap[0].fireCycle <= s.cycle {
		e := heap.Pop(&s.heap).(*pendingEvent)
		if e.annuled {
			continue
		}

		madeProgress = true
		if !e.signal.Fn(e.arg) {
			e.fireCycle = s.cycle + 1
			e.seq = s.seq
			s.seq++
			heap.Push(&s.heap, e)
		}
	}

	return madeProgress
}

// Pending reports how many events are still queued.
func (s *Scheduler) Pending() int { return s.heap.Len() }
