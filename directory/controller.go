package directory

import (
	"github.com/sarchlab/marssx86/interconnect"
	"github.com/sarchlab/marssx86/sched"
)

// QueueEntry is a DirContBufferEntry (spec §4.4): one in-flight directory
// request, possibly chained behind another targeting the same line.
type QueueEntry struct {
	Request        *interconnect.MemoryRequest
	RequesterCache int
	Depends        *QueueEntry
}

// Controller is the global directory (spec §4.4). Peers[i] is the link to
// private-cache controller i. Lower is not used by the request handlers:
// a read miss's data reply is sent to the requester after Latency cycles
// without a round trip to backing memory.
type Controller struct {
	Name     string
	Store    *Store
	LineSize int
	Capacity int // total buffer slots; is_full() when fewer than 10 remain
	Latency  uint64

	Peers []*interconnect.Interconnect
	Lower *interconnect.Interconnect

	scheduler *sched.Scheduler
	pending   []*QueueEntry

	writersWaiting map[uint64]*QueueEntry

	replySignal *sched.Signal
	retrySignal *sched.Signal
}

type readCompletion struct {
	entry     *QueueEntry
	wasShared bool
}

// NewController builds a directory controller backed by store.
func NewController(name string, store *Store, lineSize int, capacity int, latency uint64, scheduler *sched.Scheduler) *Controller {
	c := &Controller{
		Name:           name,
		Store:          store,
		LineSize:       lineSize,
		Capacity:       capacity,
		Latency:        latency,
		scheduler:      scheduler,
		writersWaiting: make(map[uint64]*QueueEntry),
	}
	c.replySignal = &sched.Signal{Name: name + ".reply_read_miss", Fn: c.finishReadMiss}
	c.retrySignal = &sched.Signal{Name: name + ".retry_write_miss", Fn: c.retryWriteMiss}
	return c
}

// Endpoint adapts the controller to receive request messages from private
// caches (handle_interconnect_cb, spec §4.4).
func (c *Controller) Endpoint() interconnect.Endpoint { return endpoint{c} }

type endpoint struct{ c *Controller }

func (e endpoint) Receive(msg *interconnect.Message) bool { return e.c.receive(msg) }

func (c *Controller) lineTag(address uint64) uint64 { return address / uint64(c.LineSize) }

// IsFull implements the spec §4.4 back-pressure rule: fewer than 10 free
// buffer slots remain.
func (c *Controller) IsFull() bool {
	return c.Capacity-len(c.pending) < 10
}

func (c *Controller) findDependent(tag uint64) *QueueEntry {
	for _, e := range c.pending {
		if c.lineTag(e.Request.Address) == tag {
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

func (c *Controller) sendTo(cache int, op interconnect.MemOpType, address uint64) {
	if cache < 0 || cache >= len(c.Peers) || c.Peers[cache] == nil {
		return
	}
	c.Peers[cache].Emit(&interconnect.Message{
		Request: &interconnect.MemoryRequest{Op: op, Address: address},
	})
}

// evictPresent issues EVICT messages to every cache still holding the
// line a directory-slot reuse displaced (spec §4.4 step 1).
func (c *Controller) evictPresent(tag uint64, present Presence) {
	addr := tag * uint64(c.LineSize)
	for cache := 0; cache < len(c.Peers); cache++ {
		if present.Has(cache) {
			c.sendTo(cache, interconnect.OpEvict, addr)
		}
	}
}

func (c *Controller) receive(msg *interconnect.Message) bool {
	if c.IsFull() {
		return false
	}

	tag := c.lineTag(msg.Request.Address)

	// Update/Evict are completions of an already-tracked request (an ack
	// that a sharer finished invalidating or writing back), not a new
	// resource request on the line, so they never chain behind one.
	isCompletion := msg.Request.Op == interconnect.OpUpdate || msg.Request.Op == interconnect.OpEvict

	if dep := c.findDependent(tag); dep != nil && !isCompletion {
		entry := &QueueEntry{Request: msg.Request, RequesterCache: msg.Sender, Depends: dep}
		c.pending = append(c.pending, entry)
		return true
	}

	entry := &QueueEntry{Request: msg.Request, RequesterCache: msg.Sender}
	c.pending = append(c.pending, entry)
	c.dispatch(entry)
	return true
}

func (c *Controller) dispatch(entry *QueueEntry) {
	switch entry.Request.Op {
	case interconnect.OpRead:
		c.handleReadMiss(entry)
	case interconnect.OpWrite:
		c.handleWriteMiss(entry)
	case interconnect.OpUpdate, interconnect.OpEvict:
		c.handleUpdateOrEvict(entry)
	}
}

// handleReadMiss implements spec §4.4's read-miss state machine.
func (c *Controller) handleReadMiss(entry *QueueEntry) {
	tag := c.lineTag(entry.Request.Address)
	e, evictedTag, evictedPresent, evicted := c.Store.Allocate(tag)
	if evicted {
		c.evictPresent(evictedTag, evictedPresent)
	}

	wasShared := !e.Present.Empty()
	if e.Dirty {
		c.sendTo(e.Owner, interconnect.OpUpdate, entry.Request.Address)
	}

	e.Present.Set(entry.RequesterCache)
	if !wasShared {
		e.Owner = entry.RequesterCache
	}
	e.Dirty = false

	c.scheduler.AddEvent(c.replySignal, c.Latency, &readCompletion{entry: entry, wasShared: wasShared})
}

func (c *Controller) finishReadMiss(arg interface{}) bool {
	rc := arg.(*readCompletion)
	c.removeEntry(rc.entry)

	if rc.entry.RequesterCache >= 0 && rc.entry.RequesterCache < len(c.Peers) && c.Peers[rc.entry.RequesterCache] != nil {
		c.Peers[rc.entry.RequesterCache].Emit(&interconnect.Message{
			Request:  rc.entry.Request,
			IsReply:  true,
			IsShared: rc.wasShared,
		})
	}
	c.wakeDependents(c.lineTag(rc.entry.Request.Address))
	return true
}

// handleWriteMiss implements spec §4.4's write-miss state machine.
func (c *Controller) handleWriteMiss(entry *QueueEntry) {
	tag := c.lineTag(entry.Request.Address)
	e, evictedTag, evictedPresent, evicted := c.Store.Allocate(tag)
	if evicted {
		c.evictPresent(evictedTag, evictedPresent)
	}

	if e.Locked {
		c.scheduler.AddEvent(c.retrySignal, 1, entry)
		return
	}

	// The writer's own copy (a Shared line being upgraded) is not one the
	// write has to wait on.
	e.Present.Clear(entry.RequesterCache)

	if e.Present.Empty() {
		e.Owner = entry.RequesterCache
		e.Dirty = true
		e.Present.Set(entry.RequesterCache)
		c.completeWriteMiss(entry)
		return
	}

	e.Locked = true
	c.writersWaiting[tag] = entry
	addr := tag * uint64(c.LineSize)
	for cache := 0; cache < len(c.Peers); cache++ {
		if cache != entry.RequesterCache && e.Present.Has(cache) {
			c.sendTo(cache, interconnect.OpEvict, addr)
		}
	}
}

func (c *Controller) retryWriteMiss(arg interface{}) bool {
	entry := arg.(*QueueEntry)
	c.handleWriteMiss(entry)
	return true
}

func (c *Controller) completeWriteMiss(entry *QueueEntry) {
	c.removeEntry(entry)
	if entry.RequesterCache >= 0 && entry.RequesterCache < len(c.Peers) && c.Peers[entry.RequesterCache] != nil {
		c.Peers[entry.RequesterCache].Emit(&interconnect.Message{
			Request: entry.Request,
			IsReply: true,
		})
	}
	c.wakeDependents(c.lineTag(entry.Request.Address))
}

// handleUpdateOrEvict implements spec §4.4 Update/Evict: "decrement
// present for the originator; if owner == originator reassign; if this
// completes a pending write chain, wake the originating request."
func (c *Controller) handleUpdateOrEvict(entry *QueueEntry) {
	tag := c.lineTag(entry.Request.Address)

	e, ok := c.Store.Probe(tag)
	if !ok {
		if d, ok2 := c.Store.Evicting(tag); ok2 {
			d.Present.Clear(entry.RequesterCache)
			if d.Present.Empty() {
				c.Store.FreeDummy(tag)
			}
		}
		c.removeEntry(entry)
		c.wakeDependents(tag)
		return
	}

	e.Present.Clear(entry.RequesterCache)
	if e.Owner == entry.RequesterCache {
		if e.Present.Empty() {
			e.Owner = NoOwner
		} else {
			e.Owner = e.Present.LSB()
		}
	}
	c.removeEntry(entry)

	if w, waiting := c.writersWaiting[tag]; waiting && e.Present.Empty() {
		delete(c.writersWaiting, tag)
		e.Owner = w.RequesterCache
		e.Dirty = true
		e.Present.Set(w.RequesterCache)
		e.Locked = false
		c.completeWriteMiss(w)
		return
	}

	c.wakeDependents(tag)
}

// wakeDependents re-dispatches any pending entry chained behind a
// completed one for the same line (find_dependent_entry/wakeup_dependent,
// spec §4.4).
func (c *Controller) wakeDependents(tag uint64) {
	for _, e := range c.pending {
		if e.Depends != nil && c.lineTag(e.Depends.Request.Address) == tag {
			e.Depends = nil
			c.dispatch(e)
			return
		}
	}
}

// Pending reports how many directory requests are in flight.
func (c *Controller) Pending() int { return len(c.pending) }
