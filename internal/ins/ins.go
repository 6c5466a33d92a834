// Package ins defines the semantic instruction representation shared by the
// decoders and the stream classifiers. An Ins is produced once per address by
// a decoder and never mutated; classifiers only pattern-match on it.
package ins

import (
	"fmt"
	"strings"
)

// Mode is an ARM execution mode.
type Mode uint8

const (
	ModeArm Mode = iota
	ModeThumb
)

func (m Mode) String() string {
	if m == ModeThumb {
		return "thumb"
	}
	return "arm"
}

// InstructionSize returns the size in bytes of a typical instruction in this
// mode. Thumb BL/BLX pairs are the exception and report their own size.
func (m Mode) InstructionSize() uint32 {
	if m == ModeThumb {
		return 2
	}
	return 4
}

// Cond is an ARM condition code.
type Cond uint8

const (
	CondAl Cond = iota
	CondEq
	CondNe
	CondCs
	CondCc
	CondMi
	CondPl
	CondVs
	CondVc
	CondHi
	CondLs
	CondGe
	CondLt
	CondGt
	CondLe
)

var condNames = [...]string{"", "eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le"}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("cond(%d)", int(c))
}

// MaxArgs is the number of argument slots in an instruction. Slots beyond the
// last real argument hold the None sentinel; several classifier rules depend
// on a trailing slot being absent.
const MaxArgs = 5

// Args is the fixed-size ordered argument list.
type Args [MaxArgs]Operand

// Ins is a decoded instruction.
type Ins struct {
	Mnemonic string // lowercase, condition and flag suffixes included (e.g. "movge", "eors")
	Args     Args
	Address  uint32
	Mode     Mode
	Cond     Cond
	Size     uint32 // encoding size in bytes: 4 in ARM mode, 2 or 4 (BL/BLX) in Thumb

	// UpdatesFlags reports whether executing the instruction writes the
	// condition flags. IsIllegal reports an architecturally undefined
	// encoding; both facts come from the decoder and are treated as
	// ground truth.
	UpdatesFlags bool
	IsIllegal    bool
}

// New builds an instruction from a mnemonic and argument list. Used by tests
// and decoders; the address, mode and flag facts are set by the caller.
func New(mnemonic string, args ...Operand) Ins {
	i := Ins{Mnemonic: mnemonic, Size: 4}
	copy(i.Args[:], args)
	return i
}

// IsConditional reports whether the instruction executes under a condition
// other than always.
func (i *Ins) IsConditional() bool { return i.Cond != CondAl }

// BranchDest returns the absolute branch target if the instruction has a
// branch-target operand.
func (i *Ins) BranchDest() (uint32, bool) {
	for _, a := range i.Args {
		if a.Kind == KindBranch {
			return a.Imm, true
		}
	}
	return 0, false
}

// RegisterList returns the first register-list operand, or zero if none.
func (i *Ins) RegisterList() RegList {
	for _, a := range i.Args {
		if a.Kind == KindRegList {
			return a.Regs
		}
	}
	return 0
}

func (i *Ins) String() string {
	var b strings.Builder
	b.WriteString(i.Mnemonic)
	for n, a := range i.Args {
		if a.IsNone() {
			break
		}
		if n == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	return b.String()
}
