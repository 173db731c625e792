package mesi

import "github.com/sarchlab/marssx86/interconnect"

// Line is one way of a cache set.
type Line struct {
	Valid bool
	Tag   uint64
	State State
}

// set holds Ways Lines plus a pseudo-LRU MRU bitvector (spec §3 Cache
// Line: set the bit on access and evict the first way whose bit is
// clear). When every bit would be set, all bits but the just-touched
// way's are cleared.
type set struct {
	lines []Line
	mru   uint64 // bit i set => way i was recently used
}

func newSet(ways int) *set {
	return &set{lines: make([]Line, ways)}
}

func (s *set) touch(way int) {
	s.mru |= 1 << uint(way)
	full := uint64(1)<<uint(len(s.lines)) - 1
	if s.mru == full {
		s.mru = 1 << uint(way)
	}
}

// victim picks the first way whose MRU bit is clear, preferring an
// invalid way outright.
func (s *set) victim() int {
	for i, l := range s.lines {
		if !l.Valid {
			return i
		}
	}
	for i := range s.lines {
		if s.mru&(1<<uint(i)) == 0 {
			return i
		}
	}
	return 0
}

// Lines is a set-associative array of cache sets, parameterized the way
// the teacher's original CacheLines<SETS, WAYS, LINE_SIZE, LATENCY>
// template was, but as runtime fields instead of C++ template constants
// (spec §9: monomorphic Go value where the original used templates).
type Lines struct {
	Sets     int
	Ways     int
	LineSize int

	ReadPorts  int
	WritePorts int

	sets []*set

	lastAccessCycle uint64
	readUsed        int
	writeUsed       int
}

// NewLines constructs a set-associative array with the given geometry.
func NewLines(sets, ways, lineSize, readPorts, writePorts int) *Lines {
	l := &Lines{
		Sets: sets, Ways: ways, LineSize: lineSize,
		ReadPorts: readPorts, WritePorts: writePorts,
		sets: make([]*set, sets),
	}
	for i := range l.sets {
		l.sets[i] = newSet(ways)
	}
	return l
}

func (l *Lines) indexAndTag(address uint64) (index int, tag uint64) {
	lineAddr := address / uint64(l.LineSize)
	return int(lineAddr % uint64(l.Sets)), lineAddr
}

// Probe returns the matching line and its way index, if present.
func (l *Lines) Probe(address uint64) (line *Line, way int, ok bool) {
	idx, tag := l.indexAndTag(address)
	s := l.sets[idx]
	for i := range s.lines {
		if s.lines[i].Valid && s.lines[i].Tag == tag {
			return &s.lines[i], i, true
		}
	}
	return nil, 0, false
}

// Insert places a line for address, evicting a victim via pseudo-LRU if
// the set is full. It returns the evicted line (Valid=false if no
// eviction was needed) and the way the new line now occupies.
func (l *Lines) Insert(address uint64, state State) (evicted Line, way int) {
	idx, tag := l.indexAndTag(address)
	s := l.sets[idx]
	way = s.victim()
	evicted = s.lines[way]
	s.lines[way] = Line{Valid: true, Tag: tag, State: state}
	s.touch(way)
	return evicted, way
}

// Victim reports which way a future Insert(address) would evict and its
// current occupant, without mutating the set. A cache-miss handler uses
// this to decide whether a writeback is owed before the fill completes.
func (l *Lines) Victim(address uint64) (way int, evicted Line) {
	idx, _ := l.indexAndTag(address)
	s := l.sets[idx]
	way = s.victim()
	return way, s.lines[way]
}

// InsertAt writes a line into a specific way, chosen earlier by Victim,
// so a miss's eventual fill lands on the same way the writeback decision
// was made against.
func (l *Lines) InsertAt(address uint64, way int, state State) {
	idx, tag := l.indexAndTag(address)
	s := l.sets[idx]
	s.lines[way] = Line{Valid: true, Tag: tag, State: state}
	s.touch(way)
}

// Touch records an access to way within address's set for pseudo-LRU
// purposes, without altering line state.
func (l *Lines) Touch(address uint64, way int) {
	idx, _ := l.indexAndTag(address)
	l.sets[idx].touch(way)
}

// Invalidate removes any line matching address, reporting whether one was
// found.
func (l *Lines) Invalidate(address uint64) bool {
	idx, tag := l.indexAndTag(address)
	s := l.sets[idx]
	for i := range s.lines {
		if s.lines[i].Valid && s.lines[i].Tag == tag {
			s.lines[i] = Line{}
			return true
		}
	}
	return false
}

// SetSnapshot returns a copy of every way in set index, for invariant
// checks (spec §8: "a cache line's tag is present in at most one way of
// its set") and diagnostic dumps. It does not disturb pseudo-LRU state.
func (l *Lines) SetSnapshot(index int) []Line {
	s := l.sets[index]
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// GetPort arbitrates read/write port usage for one cycle (spec §4.3:
// "get_port(request) tracks (read_ports_used, write_ports_used,
// last_access_cycle); when last_access_cycle != sim_cycle counters
// reset").
func (l *Lines) GetPort(op interconnect.MemOpType, cycle uint64) bool {
	if l.lastAccessCycle != cycle {
		l.lastAccessCycle = cycle
		l.readUsed = 0
		l.writeUsed = 0
	}

	switch op {
	case interconnect.OpRead:
		if l.readUsed < l.ReadPorts {
			l.readUsed++
			return true
		}
		return false
	default:
		if l.writeUsed < l.WritePorts {
			l.writeUsed++
			return true
		}
		return false
	}
}
