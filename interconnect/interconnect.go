package interconnect

import "github.com/sarchlab/marssx86/sched"

// Kind names the six wiring points a controller can reach (spec §4.2):
// the shared directory, the private cache above/below a given level, a
// second upper link (for the two-wide Atom core's split I/D ports), and
// the dedicated instruction/data links out of a core.
type Kind int

const (
	Directory Kind = iota
	Upper
	Lower
	Upper2
	I
	D
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case Upper:
		return "upper"
	case Lower:
		return "lower"
	case Upper2:
		return "upper2"
	case I:
		return "i"
	case D:
		return "d"
	default:
		return "unknown"
	}
}

// Endpoint receives a Message delivered by an Interconnect. Controllers,
// the directory, and cores all implement it.
type Endpoint interface {
	// Receive handles a delivered message. It returns false to ask the
	// interconnect to hold the message and redeliver it one cycle later,
	// the uniform backpressure idiom used throughout the timing core.
	Receive(msg *Message) bool
}

// Interconnect is a fixed-latency point-to-point link between a
// controller and one neighbor (spec §4.2). Unlike a real
// sim.directconnection, delivery is driven by the shared Scheduler so the
// link's latency is expressed in cycles, matching the original engine's
// per-wire CONTROLLER_REQUEST/RESPONSE delay constants.
type Interconnect struct {
	Name  string
	Kind  Kind
	Delay uint64 // cycles from emit to delivery attempt

	scheduler *sched.Scheduler
	endpoint  Endpoint
	signal    *sched.Signal

	queued int // messages in flight, for Size()/back-pressure introspection
}

// New creates an Interconnect of the given kind and fixed delay, delivering
// to endpoint via scheduler.
func New(name string, kind Kind, delay uint64, scheduler *sched.Scheduler, endpoint Endpoint) *Interconnect {
	ic := &Interconnect{
		Name:      name,
		Kind:      kind,
		Delay:     delay,
		scheduler: scheduler,
		endpoint:  endpoint,
	}
	ic.signal = &sched.Signal{Name: name + ".deliver", Fn: ic.deliver}
	return ic
}

// Emit schedules msg for delivery Delay cycles from now. It never blocks:
// acceptance of a message that cannot be delivered is the endpoint's
// responsibility via Receive's retry return, not the link's.
func (ic *Interconnect) Emit(msg *Message) {
	ic.queued++
	ic.scheduler.AddEvent(ic.signal, ic.Delay, msg)
}

// deliver is the Scheduler callback that hands msg to the endpoint. A
// false return from Receive reschedules delivery one cycle later, exactly
// like the original engine's handle_interconnect_cb retry convention.
func (ic *Interconnect) deliver(arg interface{}) bool {
	msg := arg.(*Message)
	if !ic.endpoint.Receive(msg) {
		return false
	}
	ic.queued--
	return true
}

// Queued reports how many messages are currently in flight or awaiting a
// retried delivery on this link.
func (ic *Interconnect) Queued() int { return ic.queued }
