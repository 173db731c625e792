// Package interconnect implements the Message and Interconnect abstractions
// that couple cache controllers, the directory, and cores (spec §4.2). It
// builds on github.com/sarchlab/akita/v4/sim's Msg/MsgMeta/Port contract the
// way the teacher's core/port.go does, adding the pooled-message and
// delay-queue semantics the original engine's Interconnect type provides.
package interconnect

import (
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// MemOpType distinguishes the four directory/cache request kinds named in
// spec §4.3/§4.4.
type MemOpType int

const (
	OpRead MemOpType = iota
	OpWrite
	OpUpdate
	OpEvict
)

func (t MemOpType) String() string {
	switch t {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpUpdate:
		return "update"
	case OpEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// MemoryRequest is the refcounted request a Message carries (spec §3
// Pending Request Buffer: "the owning MemoryRequest (refcounted)").
type MemoryRequest struct {
	Op          MemOpType
	Address     uint64 // cache-line-aligned address
	CoreID      int    // originating core/controller index
	RequestorID int    // opaque tag the originator uses to match the reply

	refcount int
}

// Acquire increments the request's refcount.
func (r *MemoryRequest) Acquire() { r.refcount++ }

// Release decrements the request's refcount, returning the value after the
// decrement. Callers free the request once it reaches zero.
func (r *MemoryRequest) Release() int {
	r.refcount--
	return r.refcount
}

// Message is (sender, dest, request, is_shared, has_data, arg) (spec §4.2).
// It embeds sim.MsgMeta so it satisfies sim.Msg and can travel over a real
// akita Port/Connection when an Interconnect chooses to use one.
type Message struct {
	sim.MsgMeta

	Sender  int // controller index
	Dest    int // controller index
	Request *MemoryRequest

	IsShared bool
	HasData  bool
	IsReply  bool // true for a fill/writeback completion, false for a request or snoop

	// Arg carries protocol-specific payload, e.g. the replying line's MESI
	// state so the peer's transition is exact (spec §4.3).
	Arg interface{}
}

// Meta implements sim.Msg.
func (m *Message) Meta() *sim.MsgMeta { return &m.MsgMeta }

// Pool is an explicit-free pool of Messages (spec §4.2: "Messages are
// pooled and explicitly freed"), avoiding per-message heap churn on the
// simulator's hot path.
type Pool struct {
	mu   sync.Mutex
	free []*Message
}

// NewPool creates an empty message pool.
func NewPool() *Pool { return &Pool{} }

// Alloc returns a zeroed Message, reusing a freed one when available.
func (p *Pool) Alloc() *Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return &Message{}
	}

	m := p.free[n-1]
	p.free = p.free[:n-1]
	*m = Message{}
	return m
}

// Free returns m to the pool for reuse.
func (p *Pool) Free(m *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, m)
}
