package ins

import "fmt"

// Register is an ARM core register.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	Sp
	Lr
	Pc

	// NoReg marks an absent register field.
	NoReg Register = 0xff
)

func (r Register) String() string {
	switch {
	case r == Sp:
		return "sp"
	case r == Lr:
		return "lr"
	case r == Pc:
		return "pc"
	case r <= R12:
		return fmt.Sprintf("r%d", int(r))
	}
	return fmt.Sprintf("reg(%d)", int(r))
}

// RegList is a register set encoded as a bitmask, bit N = Rn.
type RegList uint16

// Contains reports whether the list includes reg.
func (l RegList) Contains(reg Register) bool {
	if reg > Pc {
		return false
	}
	return l&(1<<reg) != 0
}

// Registers returns the listed registers in ascending order.
func (l RegList) Registers() []Register {
	var regs []Register
	for r := R0; r <= Pc; r++ {
		if l&(1<<r) != 0 {
			regs = append(regs, r)
		}
	}
	return regs
}

func (l RegList) String() string {
	s := "{"
	sep := ""
	for _, r := range l.Registers() {
		s += sep + r.String()
		sep = ","
	}
	return s + "}"
}
