package machine

import (
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/marssx86/context"
	"github.com/sarchlab/marssx86/decode"
	"github.com/sarchlab/marssx86/interconnect"
	"github.com/sarchlab/marssx86/iocore"
	"github.com/sarchlab/marssx86/oocore"
	"github.com/sarchlab/marssx86/sched"
)

// hierarchyMemory adapts a Hierarchy to the narrow oocore.Memory/
// iocore Memory interface both pipelines' issue stages consume (spec §2
// "access(request) -> latency"), so neither core package needs to import
// machine (spec §9: "dependencies flow leaves-first").
type hierarchyMemory struct {
	h *Hierarchy
}

func (m hierarchyMemory) Access(coreID int, address uint64, op oocore.MemOp) (uint64, bool) {
	hop := interconnect.OpRead
	if op == oocore.MemWrite {
		hop = interconnect.OpWrite
	}
	latency, _, ok := m.h.Access(coreID, address, hop)
	return latency, ok
}

// CoreKind selects which pipeline a Machine core slot runs (spec §2:
// "OoO Core" vs "In-Order Core").
type CoreKind int

const (
	KindOutOfOrder CoreKind = iota
	KindInOrder
)

// pipelineCore is the subset of oocore.Core/iocore.Core Machine drives
// every cycle. Both already implement RunCycle as a plain per-cycle state
// machine (spec §5: "fetch precedes rename precedes dispatch... in a
// single run_cycle invocation"); Machine's job is only to call it at the
// right point in the shared cycle, not to reimplement pipeline order.
type pipelineCore interface {
	RunCycle() error

	// CommittedInsns/CurrentRIP back spec §6's "stopinsns"/"stoprip" stop
	// conditions; both cores already track the values at the granularity
	// those conditions name (committed x86 instructions, not uops/AtomOps;
	// the RIP currently being fetched from).
	CommittedInsns() uint64
	CurrentRIP() uint64
}

type oocoreAdapter struct{ *oocore.Core }

func (a oocoreAdapter) RunCycle() error { return a.Core.RunCycle() }

type iocoreAdapter struct{ *iocore.Core }

func (a iocoreAdapter) RunCycle() error { a.Core.RunCycle(); return nil }

// Machine is the top-level assembly: one Scheduler, one Hierarchy, and a
// flat slab of cores, each wired to its own private cache chain (spec §9:
// "Make them fields of an owning Machine/Simulator value passed to every
// method; no hidden process-wide singletons"). Machine itself is the only
// sim.TickingComponent the engine drives; it advances the scheduler and
// every core once per cycle, in that order, so a core's RunCycle always
// observes the cache/directory state as of the start of its own cycle
// (spec §5 ordering guarantees).
type Machine struct {
	*sim.TickingComponent

	Scheduler *sched.Scheduler
	Hierarchy *Hierarchy

	cores []pipelineCore

	haltReason string

	// StopCycle halts the machine once Scheduler.Cycle reaches it (spec §6
	// "stopcycle"); zero means unbounded.
	StopCycle uint64

	// StopInsns halts the machine once the total x86 instructions
	// committed across every core reaches it (spec §6 "stopinsns"); zero
	// means unbounded.
	StopInsns uint64

	// StopRIP halts the machine once any core is fetching from this RIP
	// (spec §6 "stoprip"); zero means disabled (RIP 0 is never a
	// legitimate stop target since execution never starts there).
	StopRIP uint64
}

// Builder assembles a Machine the way config.DeviceBuilder assembles a
// CGRA device: a chained With* builder culminating in Build(name),
// retargeted from a tile mesh to a core count plus cache/directory
// geometry (spec §6 configuration surface, §9's flat-indexed-controllers
// redesign note).
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	monitor *monitoring.Monitor

	dirCapacity int
	dirLatency  uint64
	lineSize    int

	cores []coreSpec
}

// WithMonitor attaches a monitoring.Monitor the way
// config.DeviceBuilder.WithMonitor does. Machine is this module's one
// real sim.Component: oocore.Core, iocore.Core, mesi.Controller and
// directory.Controller are plain per-cycle state machines the Machine
// drives directly out of Tick (spec §5: "single-threaded cooperative...
// no implicit yield"), never holding a port or ticking on their own, so
// there is nothing for the monitor to register them as independently of
// the Machine that sweeps them.
func (b Builder) WithMonitor(monitor *monitoring.Monitor) Builder {
	b.monitor = monitor
	return b
}

type coreSpec struct {
	kind      CoreKind
	levels    []LevelSpec
	threads   int
	fetchW    int
	commitW   int
	nPhys     int
	robDepth  int
	lsqDepth  int
	tlbWays   int
	translator decode.Translator
	bbCapacity int
}

// NewBuilder starts a Machine builder with the given directory geometry;
// every core added via WithOutOfOrderCore/WithInOrderCore shares it.
func NewBuilder(engine sim.Engine, freq sim.Freq, dirCapacity int, dirLatency uint64, lineSize int) Builder {
	return Builder{engine: engine, freq: freq, dirCapacity: dirCapacity, dirLatency: dirLatency, lineSize: lineSize}
}

// WithOutOfOrderCore adds an out-of-order core (spec §4.5) with its own
// private cache chain (outermost level first).
func (b Builder) WithOutOfOrderCore(levels []LevelSpec, translator decode.Translator, bbCapacity, nPhys, robDepth, lsqDepth, tlbWays, fetchW, commitW int) Builder {
	b.cores = append(b.cores, coreSpec{
		kind: KindOutOfOrder, levels: levels, translator: translator, bbCapacity: bbCapacity,
		nPhys: nPhys, robDepth: robDepth, lsqDepth: lsqDepth, tlbWays: tlbWays,
		fetchW: fetchW, commitW: commitW,
	})
	return b
}

// WithInOrderCore adds a two-wide in-order Atom-style core (spec §4.6)
// with threads hardware threads sharing one private cache chain.
func (b Builder) WithInOrderCore(levels []LevelSpec, translator decode.Translator, bbCapacity, threads, fetchW int) Builder {
	b.cores = append(b.cores, coreSpec{
		kind: KindInOrder, levels: levels, translator: translator, bbCapacity: bbCapacity,
		threads: threads, fetchW: fetchW,
	})
	return b
}

// Build constructs the Machine, wiring every core's cache chain into a
// shared Hierarchy/Directory and registering the Machine as the engine's
// single driving TickingComponent.
func (b Builder) Build(name string) *Machine {
	// The Scheduler is driven manually from Machine.Tick, the same
	// engine=nil convention the package's own tests use (mesi/directory/
	// sched/interconnect *_test.go), so sim_cycle only advances once per
	// real engine tick instead of racing a second auto-registered
	// TickingComponent against Machine's own.
	scheduler := sched.NewScheduler(name+".Scheduler", nil, b.freq)

	m := &Machine{
		Scheduler: scheduler,
		Hierarchy: NewHierarchy(scheduler, b.dirCapacity, b.dirLatency, b.lineSize),
	}

	for i, spec := range b.cores {
		m.Hierarchy.AddCore(i, spec.levels)

		bbCache := decode.NewBasicBlockCache(spec.translator, spec.bbCapacity)
		switch spec.kind {
		case KindOutOfOrder:
			core := oocore.NewCore(context.NewContext(), bbCache, oocore.StaticNotTakenPredictor{},
				spec.nPhys, spec.robDepth, spec.lsqDepth, spec.tlbWays, spec.fetchW, spec.commitW)
			core.Memory = hierarchyMemory{m.Hierarchy}
			core.CoreID = i
			m.cores = append(m.cores, oocoreAdapter{core})
		case KindInOrder:
			threads := make([]*iocore.AtomThread, spec.threads)
			for t := range threads {
				threads[t] = iocore.NewAtomThread(t, context.NewContext(), 8, 4, 16, 4)
			}
			core := iocore.NewCore(bbCache, oocore.StaticNotTakenPredictor{}, spec.fetchW, threads...)
			core.Memory = hierarchyMemory{m.Hierarchy}
			core.CoreID = i
			m.cores = append(m.cores, iocoreAdapter{core})
		}
	}

	m.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, m)
	if b.monitor != nil {
		b.monitor.RegisterComponent(m)
	}
	return m
}

// Tick advances sim_cycle and every core by exactly one cycle (spec §5:
// "every observable action originates from an event callback or from a
// per-cycle sweep over controllers/cores"). A core's RunCycle error halts
// the machine with a named diagnostic rather than silently dropping the
// cycle (spec §7: "never silent").
func (m *Machine) Tick(now sim.VTimeInSec) bool {
	if m.haltReason != "" {
		return false
	}

	if m.StopCycle != 0 && m.Scheduler.Cycle() >= m.StopCycle {
		m.haltReason = "stopcycle reached"
		return false
	}

	progress := m.Scheduler.Tick(now)

	for i, c := range m.cores {
		if err := c.RunCycle(); err != nil {
			m.haltReason = err.Error()
			return false
		}
		_ = i
		progress = true

		if m.StopRIP != 0 && c.CurrentRIP() == m.StopRIP {
			m.haltReason = "stoprip reached"
			return false
		}
	}

	if m.StopInsns != 0 && m.CommittedInsns() >= m.StopInsns {
		m.haltReason = "stopinsns reached"
		return false
	}

	return progress
}

// CommittedInsns sums the x86 instructions committed across every core
// (spec §6 "stopinsns").
func (m *Machine) CommittedInsns() uint64 {
	var total uint64
	for _, c := range m.cores {
		total += c.CommittedInsns()
	}
	return total
}

// Halted reports whether a core reported an unrecoverable error, and the
// diagnostic if so (spec §7: "halts with a dumped core state and a named
// diagnostic").
func (m *Machine) Halted() (bool, string) {
	return m.haltReason != "", m.haltReason
}

// Cycle returns the machine's current sim_cycle.
func (m *Machine) Cycle() uint64 { return m.Scheduler.Cycle() }
