package decode

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/marssx86/uop"
)

// FixtureBlock is the YAML-serializable description of one basic block,
// mirroring the teacher's YAML program format (core/program.go) but
// re-keyed on RIPVirtPhys instead of tile coordinates.
type FixtureBlock struct {
	RIP         uint64          `yaml:"rip"`
	Bytes       int             `yaml:"bytes"`
	Ops         []FixtureUop    `yaml:"ops"`
	RipTaken    uint64          `yaml:"rip_taken"`
	RipNotTaken uint64          `yaml:"rip_not_taken"`
}

// FixtureUop is the YAML-serializable description of one uop.
type FixtureUop struct {
	Opcode string `yaml:"opcode"`
	Ra     int16  `yaml:"ra"`
	Rb     int16  `yaml:"rb"`
	Rc     int16  `yaml:"rc"`
	Rd     int16  `yaml:"rd"`
	Size   byte   `yaml:"size"`
	SOM    bool   `yaml:"som"`
	EOM    bool   `yaml:"eom"`
	RbImm  int64  `yaml:"rbimm"`
	RcImm  int64  `yaml:"rcimm"`
}

var mnemonicTable = map[string]uop.Opcode{
	"nop": uop.OpNop, "add": uop.OpAdd, "sub": uop.OpSub,
	"and": uop.OpAnd, "or": uop.OpOr, "xor": uop.OpXor,
	"shl": uop.OpShl, "shr": uop.OpShr, "sar": uop.OpSar,
	"br": uop.OpBr, "br.cond": uop.OpBrCond, "jmp": uop.OpJmp,
	"call": uop.OpCall, "ret": uop.OpRet,
	"ld": uop.OpLd, "ldx": uop.OpLdx, "st": uop.OpSt,
	"fadd": uop.OpFAdd, "fsub": uop.OpFSub, "fmul": uop.OpFMul, "fdiv": uop.OpFDiv,
}

// FixtureTranslator is a Translator backed by a static, YAML-loaded map from
// RIP to basic block. It is used by tests and by the reference driver to
// exercise the pipelines without a real x86 decoder (spec §1 decoder is out
// of scope; this is a stand-in collaborator).
type FixtureTranslator struct {
	blocks map[uint64]FixtureBlock
}

// NewFixtureTranslator builds a translator from in-memory fixture blocks.
func NewFixtureTranslator(blocks []FixtureBlock) *FixtureTranslator {
	t := &FixtureTranslator{blocks: make(map[uint64]FixtureBlock, len(blocks))}
	for _, b := range blocks {
		t.blocks[b.RIP] = b
	}
	return t
}

// LoadFixtureTranslatorYAML loads basic block fixtures from a YAML file,
// mirroring core.LoadProgramFileFromYAML's file-loading shape.
func LoadFixtureTranslatorYAML(path string) (*FixtureTranslator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode: reading fixture file: %w", err)
	}

	var blocks []FixtureBlock
	if err := yaml.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("decode: parsing fixture file: %w", err)
	}

	return NewFixtureTranslator(blocks), nil
}

// Translate implements Translator.
func (t *FixtureTranslator) Translate(key RIPVirtPhys) (*BasicBlock, error) {
	fb, ok := t.blocks[key.RIP]
	if !ok {
		return nil, fmt.Errorf("decode: no fixture basic block for %s", key)
	}

	uops := make([]uop.Uop, len(fb.Ops))
	for i, fu := range fb.Ops {
		opcode, ok := mnemonicTable[fu.Opcode]
		if !ok {
			return nil, fmt.Errorf("decode: unknown fixture mnemonic %q", fu.Opcode)
		}
		uops[i] = uop.Uop{
			Opcode: opcode,
			Size:   uop.Size(fu.Size),
			Ra:     uop.Reg(fu.Ra),
			Rb:     uop.Reg(fu.Rb),
			Rc:     uop.Reg(fu.Rc),
			Rd:     uop.Reg(fu.Rd),
			SOM:    fu.SOM,
			EOM:    fu.EOM,
			RbImm:  fu.RbImm,
			RcImm:  fu.RcImm,
		}
	}

	branch := uop.BranchNone
	if len(uops) > 0 && uops[len(uops)-1].IsBranch() {
		branch = uop.BranchUncondJump
	}

	bb, err := NewBasicBlock(
		NewRIPVirtPhys(key.RIP, key.RIP, fb.Bytes, key.Use64, key.Kernel, key.DF),
		uops, fb.RipTaken, fb.RipNotTaken, branch)
	if err != nil {
		return nil, err
	}
	bb.Bytes = fb.Bytes
	return bb, nil
}
