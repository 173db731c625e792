// Package machine owns the scheduler, cores, and cache/directory
// controllers as flat indexed slabs (spec §9: "Represent controllers as
// indices into a flat Vec<Controller> owned by a Machine... interconnects
// store controller indices, never pointers"). No package-level mutable
// state lives here or in the packages it wires: every Machine constructs
// its own Scheduler, Hierarchy and cores, mirroring config.DeviceBuilder's
// per-call device construction rather than a process-wide singleton.
package machine

import (
	"fmt"

	"github.com/sarchlab/marssx86/directory"
	"github.com/sarchlab/marssx86/interconnect"
	"github.com/sarchlab/marssx86/mesi"
	"github.com/sarchlab/marssx86/sched"
)

// LevelSpec configures one level of a core's private cache chain (spec
// §4.3), geometry parameters that were C++ template constants
// (CacheLines<SETS,WAYS,LINE_SIZE,LATENCY>) in the original engine and are
// runtime fields here (spec §9).
type LevelSpec struct {
	Name                 string
	Sets, Ways, LineSize int
	ReadPorts, WritePorts int
	Latency              uint64
	LinkDelay            uint64 // cycles from this level to its neighbor
	Capacity             int    // pending CacheQueueEntry slots
}

// topEndpoint stands in for the core above a cache chain's outermost
// level. The Access helper below polls it synchronously instead of
// wiring a real core, the same simplification DESIGN.md's mesi notes
// describe for fill round-trips: the reply is a real scheduled
// event, observed here by a plain completion flag rather than a second
// TickingComponent.
type topEndpoint struct {
	done  bool
	state mesi.State
}

func (e *topEndpoint) Receive(msg *interconnect.Message) bool {
	e.done = true
	if st, ok := msg.Arg.(mesi.State); ok {
		e.state = st
	}
	return true
}

// coreChain is one core's private cache levels, outermost first, plus the
// synthetic endpoint Access() polls for completion.
type coreChain struct {
	levels []*mesi.Controller
	top    *topEndpoint
}

// Hierarchy wires one private cache chain per core to a single shared
// Directory (spec §4.4), generalizing config.DeviceBuilder's tile-mesh
// wiring from a CGRA router mesh to a MESI cache/directory topology.
type Hierarchy struct {
	Scheduler *sched.Scheduler
	Directory *directory.Controller

	lineSize int
	cores    []*coreChain
}

// NewHierarchy builds an empty hierarchy over a freshly constructed
// directory (dirCapacity entries, dirLatency cycles per round trip,
// lineSize bytes per line), sharing scheduler with every cache level and
// core AddCore wires in later.
func NewHierarchy(scheduler *sched.Scheduler, dirCapacity int, dirLatency uint64, lineSize int) *Hierarchy {
	store := directory.NewStore(dirCapacity)
	dir := directory.NewController("directory", store, lineSize, dirCapacity, dirLatency, scheduler)
	return &Hierarchy{Scheduler: scheduler, Directory: dir, lineSize: lineSize}
}

// AddCore wires a new private cache chain (outermost level first, e.g.
// L1 then L2) for coreID, connecting its innermost (lowest-private) level
// to the shared Directory and growing Directory.Peers to match. Returns
// the chain's outermost controller so a core's fetch/LSQ stages can issue
// requests directly against it.
func (h *Hierarchy) AddCore(coreID int, levels []LevelSpec) *mesi.Controller {
	if len(levels) == 0 {
		panic("machine: AddCore requires at least one cache level")
	}

	chain := &coreChain{}
	var controllers []*mesi.Controller
	for i, spec := range levels {
		lines := mesi.NewLines(spec.Sets, spec.Ways, spec.LineSize, spec.ReadPorts, spec.WritePorts)
		isLowest := i == len(levels)-1
		name := fmt.Sprintf("core%d.%s", coreID, spec.Name)
		ctrl := mesi.NewController(name, lines, spec.Latency, isLowest, spec.Capacity, h.Scheduler)
		controllers = append(controllers, ctrl)
	}

	for i := 0; i < len(controllers)-1; i++ {
		linkName := fmt.Sprintf("core%d.%s-%s", coreID, levels[i].Name, levels[i+1].Name)
		link := interconnect.New(linkName, interconnect.Lower, levels[i].LinkDelay, h.Scheduler, controllers[i+1].UpperEndpoint())
		controllers[i].LowerOut = link
		upName := fmt.Sprintf("core%d.%s-%s", coreID, levels[i+1].Name, levels[i].Name)
		controllers[i+1].UpperOut = interconnect.New(upName, interconnect.Upper, levels[i].LinkDelay, h.Scheduler, controllers[i].LowerEndpoint())
	}

	last := controllers[len(controllers)-1]
	lastSpec := levels[len(levels)-1]

	toDir := interconnect.New(fmt.Sprintf("core%d.%s-directory", coreID, lastSpec.Name), interconnect.Directory, lastSpec.LinkDelay, h.Scheduler, h.Directory.Endpoint())
	last.LowerOut = toDir

	fromDir := interconnect.New(fmt.Sprintf("directory-core%d", coreID), interconnect.Lower, h.Directory.Latency, h.Scheduler, last.LowerEndpoint())
	h.setPeer(coreID, fromDir)

	top := &topEndpoint{}
	controllers[0].UpperOut = interconnect.New(fmt.Sprintf("core%d.top", coreID), interconnect.Upper, 0, h.Scheduler, top)

	chain.levels = controllers
	chain.top = top
	for len(h.cores) <= coreID {
		h.cores = append(h.cores, nil)
	}
	h.cores[coreID] = chain

	return controllers[0]
}

func (h *Hierarchy) setPeer(coreID int, link *interconnect.Interconnect) {
	for len(h.Directory.Peers) <= coreID {
		h.Directory.Peers = append(h.Directory.Peers, nil)
	}
	h.Directory.Peers[coreID] = link
}

// Access drives a single synchronous memory access for coreID against its
// outermost cache level, advancing the shared Scheduler until the
// request's reply reaches the chain's top endpoint, and returns the
// latency in cycles plus the line's resulting MESI state. This is the
// access(request) -> latency operation spec §2 assigns to the Memory
// Hierarchy component; ok is false if the outermost level's pending queue
// is full and the caller must retry the access itself.
func (h *Hierarchy) Access(coreID int, address uint64, op interconnect.MemOpType) (latency uint64, state mesi.State, ok bool) {
	chain := h.cores[coreID]
	start := h.Scheduler.Cycle()

	req := &interconnect.MemoryRequest{Op: op, Address: address, CoreID: coreID}
	msg := &interconnect.Message{Request: req, Sender: coreID, Dest: coreID}

	if !chain.levels[0].UpperEndpoint().Receive(msg) {
		return 0, 0, false
	}

	chain.top.done = false
	for !chain.top.done {
		if h.Scheduler.Pending() == 0 {
			break
		}
		h.Scheduler.Tick(0)
	}

	return h.Scheduler.Cycle() - start, chain.top.state, true
}

// Line exposes the current MESI state of address in coreID's outermost
// cache level, for assertions (spec §8 invariants) without driving an
// access.
func (h *Hierarchy) Line(coreID int, address uint64) (mesi.State, bool) {
	line, _, ok := h.cores[coreID].levels[0].Lines.Probe(address)
	if !ok {
		return mesi.Invalid, false
	}
	return line.State, true
}

// DirectoryEntry exposes the directory's current entry for address, for
// assertions against spec §8's directory invariants.
func (h *Hierarchy) DirectoryEntry(address uint64) (*directory.Entry, bool) {
	return h.Directory.Store.Probe(address / uint64(h.lineSize))
}
