package analysis

import "dsdelink/internal/ins"

// IllegalCodeState detects instruction sequences that never appear in real
// code, only in raw bytes misread as instructions. The decoder's own illegal
// verdict passes through unconditionally; two extra patterns catch accidental
// decodings of data: a freshly shifted register used unshifted as a
// store-multiple base, and a store whose base and offset registers are the
// same.
//
// Illegal is not sticky: every Handle call recomputes from the new
// instruction, so callers must check after each step.
type IllegalCodeState struct {
	kind illegalKind
	reg  ins.Register
}

type illegalKind uint8

const (
	illegalStart illegalKind = iota
	illegalShiftedReg
	illegalFound
)

var shiftMnemonics = map[string]bool{
	"lsl": true, "lsls": true,
	"lsr": true, "lsrs": true,
	"asr": true, "asrs": true,
	"ror": true, "rors": true,
}

// Handle steps the state machine.
func (s IllegalCodeState) Handle(i *ins.Ins) IllegalCodeState {
	if i.IsIllegal {
		return IllegalCodeState{kind: illegalFound}
	}

	args := &i.Args
	if shiftMnemonics[i.Mnemonic] && args[0].Kind == ins.KindReg {
		return IllegalCodeState{kind: illegalShiftedReg, reg: args[0].Reg}
	}

	if s.kind == illegalShiftedReg && (i.Mnemonic == "stm" || i.Mnemonic == "stmia") &&
		args[0].Kind == ins.KindReg && args[0].Reg == s.reg {
		return IllegalCodeState{kind: illegalFound}
	}

	if i.Mnemonic == "str" && args[1].Kind == ins.KindReg && args[1].Deref &&
		args[2].Kind == ins.KindOffsetReg && args[1].Reg == args[2].Reg {
		return IllegalCodeState{kind: illegalFound}
	}

	return IllegalCodeState{}
}

// IsIllegal reports whether valid code has ended at the instruction just
// handled.
func (s IllegalCodeState) IsIllegal() bool { return s.kind == illegalFound }
