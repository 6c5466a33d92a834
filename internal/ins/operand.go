package ins

import "fmt"

// Kind discriminates the operand variants. The zero value is KindNone, so an
// unused argument slot compares equal to the None sentinel.
type Kind uint8

const (
	KindNone Kind = iota
	KindReg
	KindUImm
	KindSImm
	KindOffsetImm
	KindOffsetReg
	KindBranch
	KindShiftImm
	KindShiftReg
	KindRegList
)

// Shift is a barrel shifter operation.
type Shift uint8

const (
	ShiftLsl Shift = iota
	ShiftLsr
	ShiftAsr
	ShiftRor
	ShiftRrx
)

func (s Shift) String() string {
	switch s {
	case ShiftLsl:
		return "lsl"
	case ShiftLsr:
		return "lsr"
	case ShiftAsr:
		return "asr"
	case ShiftRor:
		return "ror"
	case ShiftRrx:
		return "rrx"
	}
	return fmt.Sprintf("shift(%d)", int(s))
}

// Operand is one argument slot of a decoded instruction. Equality is
// structural: two operands are the same argument iff they compare equal.
//
// Field use by kind:
//
//	KindReg        Reg, Deref, WriteBack
//	KindUImm       Imm
//	KindSImm       SImm
//	KindOffsetImm  SImm, Post
//	KindOffsetReg  Reg, Sub
//	KindBranch     Imm (absolute target address)
//	KindShiftImm   Shift, Imm
//	KindShiftReg   Shift, Reg
//	KindRegList    Regs
type Operand struct {
	Kind      Kind
	Reg       Register
	Deref     bool
	WriteBack bool
	Sub       bool
	Post      bool
	Shift     Shift
	Imm       uint32
	SImm      int32
	Regs      RegList
}

// IsNone reports whether the slot is unused.
func (o Operand) IsNone() bool { return o.Kind == KindNone }

// IsReg reports whether the operand is the plain (non-dereferenced) register reg.
func (o Operand) IsReg(reg Register) bool {
	return o.Kind == KindReg && !o.Deref && o.Reg == reg
}

// IsDerefReg reports whether the operand is a dereferenced base register reg.
func (o Operand) IsDerefReg(reg Register) bool {
	return o.Kind == KindReg && o.Deref && o.Reg == reg
}

func (o Operand) String() string {
	switch o.Kind {
	case KindNone:
		return ""
	case KindReg:
		s := o.Reg.String()
		if o.Deref {
			s = "[" + s + "]"
		}
		if o.WriteBack {
			s += "!"
		}
		return s
	case KindUImm:
		return fmt.Sprintf("#%#x", o.Imm)
	case KindSImm:
		return fmt.Sprintf("#%d", o.SImm)
	case KindOffsetImm:
		return fmt.Sprintf("#%+d", o.SImm)
	case KindOffsetReg:
		if o.Sub {
			return "-" + o.Reg.String()
		}
		return o.Reg.String()
	case KindBranch:
		return fmt.Sprintf("%#x", o.Imm)
	case KindShiftImm:
		return fmt.Sprintf("%s #%d", o.Shift, o.Imm)
	case KindShiftReg:
		return fmt.Sprintf("%s %s", o.Shift, o.Reg)
	case KindRegList:
		return o.Regs.String()
	}
	return fmt.Sprintf("operand(%d)", int(o.Kind))
}

// Constructors for the operand variants. Decoders and tests build argument
// lists from these instead of filling Operand fields by hand.

func Reg(r Register) Operand          { return Operand{Kind: KindReg, Reg: r} }
func DerefReg(r Register) Operand     { return Operand{Kind: KindReg, Reg: r, Deref: true} }
func WriteBackReg(r Register) Operand { return Operand{Kind: KindReg, Reg: r, WriteBack: true} }
func UImm(v uint32) Operand           { return Operand{Kind: KindUImm, Imm: v} }
func SImm(v int32) Operand            { return Operand{Kind: KindSImm, SImm: v} }
func BranchTarget(addr uint32) Operand {
	return Operand{Kind: KindBranch, Imm: addr}
}
func OffsetImm(v int32) Operand { return Operand{Kind: KindOffsetImm, SImm: v} }
func PostOffsetImm(v int32) Operand {
	return Operand{Kind: KindOffsetImm, SImm: v, Post: true}
}
func OffsetReg(r Register) Operand { return Operand{Kind: KindOffsetReg, Reg: r} }
func SubOffsetReg(r Register) Operand {
	return Operand{Kind: KindOffsetReg, Reg: r, Sub: true}
}
func ShiftImm(op Shift, amount uint32) Operand {
	return Operand{Kind: KindShiftImm, Shift: op, Imm: amount}
}
func ShiftReg(op Shift, r Register) Operand {
	return Operand{Kind: KindShiftReg, Shift: op, Reg: r}
}
func RegListOp(regs ...Register) Operand {
	var l RegList
	for _, r := range regs {
		l |= 1 << r
	}
	return Operand{Kind: KindRegList, Regs: l}
}
