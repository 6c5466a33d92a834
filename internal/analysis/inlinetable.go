package analysis

import "dsdelink/internal/ins"

// TableKind is the element type of an inline table.
type TableKind uint8

const (
	// TableByte is a table of single bytes, the only kind the pattern
	// recognizes.
	TableByte TableKind = iota
)

// ElementSize returns the element size in bytes.
func (k TableKind) ElementSize() uint32 { return 1 }

// InlineTable is a literal data table embedded inside a function's code.
type InlineTable struct {
	Address uint32
	Size    uint32 // bytes
	Kind    TableKind
}

// Count returns the number of elements.
func (t InlineTable) Count() uint32 { return t.Size / t.Kind.ElementSize() }

// InlineTableState detects data tables embedded within a function, so the
// boundary walker does not decode them as instructions. They come from hand
// written assembly that computes a PC-relative table base with
// `sub Rb, pc, #imm` and indexes it with `ldrb Rd, [Rb, Roffset, lsr #s]`.
//
// The true table extent is not recoverable from the pattern, so the size is
// assumed to be 0x100 bytes. Existing analyzed binaries depend on this fixed
// window; do not replace it with a smarter size estimate.
type InlineTableState struct {
	kind      inlineTableKind
	tableBase ins.Register
	table     InlineTable
}

type inlineTableKind uint8

const (
	inlineTableStart inlineTableKind = iota
	inlineTableSubPc
	inlineTableValid
)

// Handle steps the state machine.
func (s InlineTableState) Handle(i *ins.Ins) InlineTableState {
	args := &i.Args
	switch s.kind {
	case inlineTableStart:
		if i.Mnemonic == "sub" && args[0].Kind == ins.KindReg && args[1].IsReg(ins.Pc) &&
			args[2].Kind == ins.KindUImm && args[3].IsNone() {
			pipeline := uint32(8)
			if i.Mode == ins.ModeThumb {
				pipeline = 4
			}
			return InlineTableState{
				kind:      inlineTableSubPc,
				tableBase: args[0].Reg,
				table: InlineTable{
					Address: 0x100 + i.Address - args[2].Imm + pipeline,
					Size:    0x100,
					Kind:    TableByte,
				},
			}
		}
		return InlineTableState{}
	case inlineTableSubPc:
		if i.Mnemonic == "ldrb" && args[0].Kind == ins.KindReg &&
			args[1].IsDerefReg(s.tableBase) &&
			args[2].Kind == ins.KindOffsetReg &&
			args[3].Kind == ins.KindShiftImm && args[3].Shift == ins.ShiftLsr &&
			args[4].IsNone() {
			return InlineTableState{kind: inlineTableValid, table: s.table}
		}
		return InlineTableState{}
	default:
		// A valid table is consumed by the walker on the step it appears;
		// adjacent tables never merge.
		return InlineTableState{}
	}
}

// Table returns the detected table, valid only on the step the terminal state
// was reached.
func (s InlineTableState) Table() (InlineTable, bool) {
	if s.kind != inlineTableValid {
		return InlineTable{}, false
	}
	return s.table, true
}
