// Package uop defines the micro-operation the timing pipelines schedule.
package uop

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Opclass groups opcodes into the coarse categories the issue queues,
// clusters, and functional units dispatch on.
type Opclass int

const (
	OpclassLogic Opclass = iota
	OpclassAddSub
	OpclassShift
	OpclassBranch
	OpclassLoad
	OpclassStore
	OpclassFPAlu
	OpclassFPCvt
	OpclassVec
	OpclassAssist
	OpclassCheck
	OpclassSpecial
)

// opclassCaser title-cases the raw opclass/opcode mnemonics below for
// display, the same cases.Title(language.English) normalization the
// teacher applies to its own direction names (core/emu.go: toTitleCase,
// titleCaser).
var opclassCaser = cases.Title(language.English)

var rawOpclassName = [...]string{
	"logic", "add/sub", "shift", "branch", "load", "store",
	"fp-alu", "fp-cvt", "vec", "assist", "check", "special",
}

func (c Opclass) String() string {
	if int(c) < 0 || int(c) >= len(rawOpclassName) {
		return opclassCaser.String("unknown")
	}
	return opclassCaser.String(rawOpclassName[c])
}

// IsMemory reports whether the opclass accesses the memory hierarchy.
func (c Opclass) IsMemory() bool {
	return c == OpclassLoad || c == OpclassStore
}

// Opcode is one of the ~150 micro-operations the decoder can emit.
type Opcode int

// OpcodeInfo pairs an opcode with its opclass and mnemonic, mirroring the
// decoder's static dispatch table.
type OpcodeInfo struct {
	Name    string
	Opclass Opclass
}

// Representative subset of the ~150-opcode table; enough to exercise every
// opclass and every pipeline stage that dispatches on one.
const (
	OpNop Opcode = iota
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpBr
	OpBrCond
	OpJmp
	OpCall
	OpRet
	OpLd
	OpLdx // sign/zero extending load
	OpSt
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpCvtF2I
	OpCvtI2F
	OpVecAdd
	OpVecMul
	OpAssist
	OpChkInv // invariant check uop (triggers CheckFailed on mismatch)
	OpCollcc // collect condition codes
	OpMax
)

var opcodeTable = [OpMax]OpcodeInfo{
	OpNop:    {"nop", OpclassSpecial},
	OpAdd:    {"add", OpclassAddSub},
	OpSub:    {"sub", OpclassAddSub},
	OpAnd:    {"and", OpclassLogic},
	OpOr:     {"or", OpclassLogic},
	OpXor:    {"xor", OpclassLogic},
	OpShl:    {"shl", OpclassShift},
	OpShr:    {"shr", OpclassShift},
	OpSar:    {"sar", OpclassShift},
	OpBr:     {"br", OpclassBranch},
	OpBrCond: {"br.cond", OpclassBranch},
	OpJmp:    {"jmp", OpclassBranch},
	OpCall:   {"call", OpclassBranch},
	OpRet:    {"ret", OpclassBranch},
	OpLd:     {"ld", OpclassLoad},
	OpLdx:    {"ldx", OpclassLoad},
	OpSt:     {"st", OpclassStore},
	OpFAdd:   {"fadd", OpclassFPAlu},
	OpFSub:   {"fsub", OpclassFPAlu},
	OpFMul:   {"fmul", OpclassFPAlu},
	OpFDiv:   {"fdiv", OpclassFPAlu},
	OpCvtF2I: {"cvt.f2i", OpclassFPCvt},
	OpCvtI2F: {"cvt.i2f", OpclassFPCvt},
	OpVecAdd: {"vadd", OpclassVec},
	OpVecMul: {"vmul", OpclassVec},
	OpAssist: {"assist", OpclassAssist},
	OpChkInv: {"chk.inv", OpclassCheck},
	OpCollcc: {"collcc", OpclassSpecial},
}

// Info returns the static metadata for an opcode.
func (o Opcode) Info() OpcodeInfo {
	if int(o) < 0 || o >= OpMax {
		return OpcodeInfo{"invalid", OpclassSpecial}
	}
	return opcodeTable[o]
}

// Opclass returns the opcode's dispatch class.
func (o Opcode) Opclass() Opclass { return o.Info().Opclass }

// String returns the opcode's display mnemonic, title-cased the same way
// Opclass.String() is.
func (o Opcode) String() string { return opclassCaser.String(o.Info().Name) }
