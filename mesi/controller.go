package mesi

import (
	"github.com/sarchlab/marssx86/interconnect"
	"github.com/sarchlab/marssx86/sched"
)

// QueueEntry is a CacheQueueEntry (spec §4.3): one in-flight request the
// controller is servicing. Entries targeting the same line address chain
// via Depends instead of running concurrently.
type QueueEntry struct {
	Request *interconnect.MemoryRequest
	Address uint64
	Depends *QueueEntry
	Way     int
}

// Controller is the per-core, per-level private cache controller (spec
// §4.3). Each level (L1I, L1D, L2, L3) is one Controller instance; the
// owning machine wires its UpperIn/LowerIn endpoints and UpperOut/LowerOut
// links rather than the controller reaching for global state (spec §9).
type Controller struct {
	Name            string
	Lines           *Lines
	Latency         uint64
	IsLowestPrivate bool
	Capacity        int

	// UpperOut replies to the core/cache above; LowerOut issues fill
	// requests and writebacks to the directory/cache below.
	UpperOut *interconnect.Interconnect
	LowerOut *interconnect.Interconnect

	scheduler *sched.Scheduler
	pending   []*QueueEntry

	accessSignal *sched.Signal
	hitSignal    *sched.Signal
	missSignal   *sched.Signal
}

// NewController builds a controller over lines, draining its event
// dispatch through scheduler.
func NewController(name string, lines *Lines, latency uint64, isLowestPrivate bool, capacity int, scheduler *sched.Scheduler) *Controller {
	c := &Controller{
		Name:            name,
		Lines:           lines,
		Latency:         latency,
		IsLowestPrivate: isLowestPrivate,
		Capacity:        capacity,
		scheduler:       scheduler,
	}
	c.accessSignal = &sched.Signal{Name: name + ".cache_access", Fn: c.cacheAccess}
	c.hitSignal = &sched.Signal{Name: name + ".cache_hit", Fn: c.cacheHit}
	c.missSignal = &sched.Signal{Name: name + ".cache_miss", Fn: c.cacheMiss}
	return c
}

// UpperEndpoint adapts the controller to receive requests arriving from
// the core/cache above (handle_upper_interconnect, spec §4.3).
func (c *Controller) UpperEndpoint() interconnect.Endpoint { return upperEndpoint{c} }

// LowerEndpoint adapts the controller to receive snoops and fill/writeback
// replies arriving from the directory/cache below
// (handle_lower_interconnect, spec §4.3).
func (c *Controller) LowerEndpoint() interconnect.Endpoint { return lowerEndpoint{c} }

type upperEndpoint struct{ c *Controller }

func (e upperEndpoint) Receive(msg *interconnect.Message) bool { return e.c.handleUpperRequest(msg) }

type lowerEndpoint struct{ c *Controller }

func (e lowerEndpoint) Receive(msg *interconnect.Message) bool { return e.c.handleLowerInterconnect(msg) }

// Pending reports how many queue entries are in flight.
func (c *Controller) Pending() int { return len(c.pending) }

func (c *Controller) findDependency(address uint64) *QueueEntry {
	for _, e := range c.pending {
		if e.Address == address {
			return e
		}
	}
	return nil
}

func (c *Controller) removeEntry(target *QueueEntry) {
	for i, e := range c.pending {
		if e == target {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// handleUpperRequest allocates a CacheQueueEntry for a request from above,
// chaining it behind a same-address entry already in flight (spec §4.3:
// "call find_dependency... if a prior entry targets the same line
// address, chain this entry via depends and stop").
func (c *Controller) handleUpperRequest(msg *interconnect.Message) bool {
	if len(c.pending) >= c.Capacity {
		return false
	}

	entry := &QueueEntry{Request: msg.Request, Address: msg.Request.Address}
	if dep := c.findDependency(entry.Address); dep != nil {
		entry.Depends = dep
		c.pending = append(c.pending, entry)
		return true
	}

	c.pending = append(c.pending, entry)
	c.scheduler.AddEvent(c.accessSignal, 0, entry)
	return true
}

// cacheAccess reserves a port, probes the set, and schedules cache_hit or
// cache_miss after the cache's access latency (spec §4.3).
func (c *Controller) cacheAccess(arg interface{}) bool {
	entry := arg.(*QueueEntry)
	if !c.Lines.GetPort(entry.Request.Op, c.scheduler.Cycle()) {
		return false
	}

	if _, way, hit := c.Lines.Probe(entry.Address); hit {
		entry.Way = way
		c.scheduler.AddEvent(c.hitSignal, c.Latency, entry)
	} else {
		c.scheduler.AddEvent(c.missSignal, c.Latency, entry)
	}
	return true
}

func (c *Controller) cacheHit(arg interface{}) bool {
	entry := arg.(*QueueEntry)
	line, way, ok := c.Lines.Probe(entry.Address)
	if !ok {
		// Line evicted between access and hit resolution; treat as a miss.
		return c.cacheMiss(arg)
	}

	next, miss := LocalTransition(line.State, entry.Request.Op, false)
	if miss && c.LowerOut != nil {
		// The transition needs the lower level (a write to a Shared line):
		// forward it like a fill request; completeFill finishes it in place.
		entry.Way = way
		c.LowerOut.Emit(&interconnect.Message{Request: entry.Request, Sender: entry.Request.CoreID})
		return true
	}
	line.State = next
	c.Lines.Touch(entry.Address, way)
	c.completeRequest(entry, next)
	return true
}

// cacheMiss selects a pseudo-LRU victim, writes back a dirty lowest-private
// victim, and forwards the fill request to the lower interconnect. The
// entry is not completed here: completion happens when the reply reaches
// handleLowerInterconnect.
func (c *Controller) cacheMiss(arg interface{}) bool {
	entry := arg.(*QueueEntry)

	way, victim := c.Lines.Victim(entry.Address)
	entry.Way = way

	if victim.Valid && victim.State == Modified && c.IsLowestPrivate && c.LowerOut != nil {
		wb := &interconnect.MemoryRequest{
			Op:      interconnect.OpUpdate,
			Address: victim.Tag * uint64(c.Lines.LineSize),
		}
		c.LowerOut.Emit(&interconnect.Message{Request: wb, HasData: true, Sender: entry.Request.CoreID})
	}

	if c.LowerOut != nil {
		c.LowerOut.Emit(&interconnect.Message{Request: entry.Request, Sender: entry.Request.CoreID})
	}
	return true
}

// handleLowerInterconnect dispatches a message arriving from below: either
// the reply to one of our own fill requests, or a directory-initiated
// snoop against a line we hold (spec §4.3).
func (c *Controller) handleLowerInterconnect(msg *interconnect.Message) bool {
	if msg.IsReply {
		return c.completeFill(msg)
	}
	return c.handleSnoop(msg)
}

func (c *Controller) completeFill(msg *interconnect.Message) bool {
	var entry *QueueEntry
	for _, e := range c.pending {
		if e.Address == msg.Request.Address && e.Depends == nil {
			entry = e
			break
		}
	}
	if entry == nil {
		return true
	}

	next, _ := LocalTransition(Invalid, entry.Request.Op, msg.IsShared)
	c.Lines.InsertAt(entry.Address, entry.Way, next)
	c.completeRequest(entry, next)
	return true
}

// completeRequest frees entry, replies upward with the final state, and
// releases anything chained behind it via depends.
func (c *Controller) completeRequest(entry *QueueEntry, final State) {
	c.removeEntry(entry)

	if c.UpperOut != nil {
		c.UpperOut.Emit(&interconnect.Message{
			Request: entry.Request,
			IsReply: true,
			Arg:     final,
		})
	}

	for _, e := range c.pending {
		if e.Depends == entry {
			e.Depends = nil
			c.scheduler.AddEvent(c.accessSignal, 0, e)
		}
	}
}

// handleSnoop processes a lower-interconnect request against our own
// lines directly, at every level: it allocates no snoop queue entry. On a
// hit it applies SnoopTransition and replies on LowerOut with the
// resulting shared and writeback flags; on a miss it does nothing.
func (c *Controller) handleSnoop(msg *interconnect.Message) bool {
	line, way, ok := c.Lines.Probe(msg.Request.Address)
	if !ok {
		return true // miss: nothing for us to invalidate or share
	}

	next, respondShared, writeback := SnoopTransition(line.State, msg.Request.Op, c.IsLowestPrivate)
	line.State = next
	if next == Invalid {
		c.Lines.Invalidate(msg.Request.Address)
	}
	c.Lines.Touch(msg.Request.Address, way)

	if c.LowerOut != nil {
		c.LowerOut.Emit(&interconnect.Message{
			Request:  msg.Request,
			IsReply:  true,
			IsShared: respondShared,
			HasData:  writeback,
			Arg:      next,
		})
	}
	return true
}
