package iocore

import "github.com/sarchlab/marssx86/uop"

// Port is one of the two issue ports of the in-order pipeline (spec §4.6:
// "A two-port issue-per-cycle pipeline").
type Port int

const (
	Port0 Port = 1 << iota
	Port1
)

const AnyPort = Port0 | Port1

// FUMask is a bitmask over the 12-entry functional unit set (4 ALU + 4 FPU
// + 4 AGU, spec §4.6: "a 12-entry FU mask (4 ALU + 4 FPU + 4 AGU)").
type FUMask uint16

const (
	FUAlu0 FUMask = 1 << iota
	FUAlu1
	FUAlu2
	FUAlu3
	FUFpu0
	FUFpu1
	FUFpu2
	FUFpu3
	FUAgu0
	FUAgu1
	FUAgu2
	FUAgu3

	FUCount = 12
)

const (
	AnyALU = FUAlu0 | FUAlu1 | FUAlu2 | FUAlu3
	AnyAGU = FUAgu0 | FUAgu1 | FUAgu2 | FUAgu3
	AnyFPU = FUFpu0 | FUFpu1 | FUFpu2 | FUFpu3
	AnyFU  = AnyALU | AnyAGU | AnyFPU
)

// FUInfo describes one opcode's issue requirements, mirroring the
// teacher-adjacent `fuinfo` table in atomcore.h (opcode -> latency, port
// mask, pipelined flag, FU mask).
type FUInfo struct {
	Latency    byte
	Port       Port
	Pipelined  bool
	Mask       FUMask
}

// fuTable maps uop opcodes to their functional-unit requirements. Only the
// opcodes the decoder stand-in can produce are populated; anything absent
// defaults to a single-cycle pipelined op on any FU (fuTable's zero value
// would be useless, so Lookup falls back explicitly).
var fuTable = map[uop.Opcode]FUInfo{
	uop.OpNop:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyFU},
	uop.OpAdd:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpSub:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpAnd:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpOr:     {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpXor:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpShl:    {Latency: 1, Port: Port0, Pipelined: true, Mask: AnyALU},
	uop.OpShr:    {Latency: 1, Port: Port0, Pipelined: true, Mask: AnyALU},
	uop.OpSar:    {Latency: 1, Port: Port0, Pipelined: true, Mask: AnyALU},
	uop.OpBr:     {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpBrCond: {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpJmp:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpCall:   {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpRet:    {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyALU},
	uop.OpLd:     {Latency: 2, Port: AnyPort, Pipelined: true, Mask: AnyAGU},
	uop.OpLdx:    {Latency: 2, Port: AnyPort, Pipelined: true, Mask: AnyAGU},
	uop.OpSt:     {Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyAGU},
	uop.OpFAdd:   {Latency: 4, Port: AnyPort, Pipelined: true, Mask: AnyFPU},
	uop.OpFSub:   {Latency: 4, Port: AnyPort, Pipelined: true, Mask: AnyFPU},
	uop.OpFMul:   {Latency: 5, Port: AnyPort, Pipelined: true, Mask: AnyFPU},
	uop.OpFDiv:   {Latency: 24, Port: AnyPort, Pipelined: false, Mask: AnyFPU},
}

// Lookup returns op's issue requirements, defaulting to a pipelined
// single-cycle op usable on any FU for opcodes absent from fuTable.
func Lookup(op uop.Opcode) FUInfo {
	if info, ok := fuTable[op]; ok {
		return info
	}
	return FUInfo{Latency: 1, Port: AnyPort, Pipelined: true, Mask: AnyFU}
}

// FailReason is why an AtomOp's issue attempt failed (spec §4.6:
// "Failed-issue reasons are counted: non-pipelined, no port, no FU, source
// not ready").
type FailReason int

const (
	FailNonPipe FailReason = iota
	FailNoPort
	FailNoFU
	FailSrcNotReady
)

// IssueResult is the tagged outcome of one AtomOp issue attempt (spec
// §4.6's ISSUE_OK/ISSUE_OK_BLOCK/ISSUE_FAIL/ISSUE_CACHE_MISS/ISSUE_OK_SKIP).
type IssueResult int

const (
	IssueOK IssueResult = iota
	IssueOKBlock
	IssueFail
	IssueCacheMiss
	IssueOKSkip
)

func (r IssueResult) String() string {
	switch r {
	case IssueOK:
		return "ok"
	case IssueOKBlock:
		return "ok-block"
	case IssueFail:
		return "fail"
	case IssueCacheMiss:
		return "cache-miss"
	case IssueOKSkip:
		return "ok-skip"
	default:
		return "unknown"
	}
}

// FUState tracks which of the 12 functional units are busy this cycle, and
// which are mid-flight on a non-pipelined multi-cycle operation (spec
// §4.6: "enforcing non-pipelined serialization for multi-cycle ops").
type FUState struct {
	busy   FUMask
	nonpipe map[FUMask]int // FU -> cycles remaining before it frees
}

// NewFUState creates an FUState with every unit idle.
func NewFUState() *FUState {
	return &FUState{nonpipe: make(map[FUMask]int)}
}

// Tick advances any in-flight non-pipelined operations by one cycle,
// freeing units whose latency has elapsed.
func (f *FUState) Tick() {
	f.busy = 0
	for fu, remaining := range f.nonpipe {
		remaining--
		if remaining <= 0 {
			delete(f.nonpipe, fu)
			continue
		}
		f.nonpipe[fu] = remaining
		f.busy |= fu
	}
}

// Reserve attempts to claim one FU matching mask, returning the claimed
// unit and whether the claim succeeded. A non-pipelined op occupies its
// unit for latency cycles; a pipelined op frees immediately (issue-width
// limited elsewhere, not by FU occupancy).
func (f *FUState) Reserve(mask FUMask, pipelined bool, latency byte) (FUMask, bool) {
	for bit := FUMask(1); bit <= FUMask(1)<<(FUCount-1); bit <<= 1 {
		if mask&bit == 0 || f.busy&bit != 0 {
			continue
		}
		if !pipelined {
			f.nonpipe[bit] = int(latency)
			f.busy |= bit
		}
		return bit, true
	}
	return 0, false
}
