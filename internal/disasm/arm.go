package disasm

import (
	"strings"

	"golang.org/x/arch/arm/armasm"

	"dsdelink/internal/ins"
)

// decodeArm decodes one ARM-mode instruction. armasm targets ARMv7 but its
// core instruction tables cover the ARMv5TE subset the DS uses; encodings it
// rejects are exactly the ones the illegal-sequence classifier wants flagged.
func decodeArm(code []byte, address uint32) ins.Ins {
	if len(code) < 4 {
		return illegalIns(address, ins.ModeArm, 4)
	}

	inst, err := armasm.Decode(code[:4], armasm.ModeARM)
	if err != nil {
		return illegalIns(address, ins.ModeArm, 4)
	}

	base, cond, flags, ok := splitOp(inst.Op.String())
	if !ok {
		return illegalIns(address, ins.ModeArm, 4)
	}

	out := ins.Ins{
		Mnemonic:     armMnemonic(base, cond, flags),
		Address:      address,
		Mode:         ins.ModeArm,
		Cond:         cond,
		Size:         4,
		UpdatesFlags: flags || alwaysUpdatesFlags(base),
	}

	slot := 0
	put := func(o ins.Operand) {
		if slot < ins.MaxArgs {
			out.Args[slot] = o
			slot++
		}
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if !flattenArg(arg, address, put) {
			return illegalIns(address, ins.ModeArm, 4)
		}
	}
	return out
}

// splitOp takes an armasm op string like "EOR.S", "MOV.GE" or "ADD.S.LT" and
// separates the base mnemonic, condition and S flag. The ".ZZ" pseudo
// condition marks encodings in the cond=0b1111 space that armasm cannot name;
// on ARMv5 those are not valid code.
func splitOp(op string) (base string, cond ins.Cond, flags bool, ok bool) {
	parts := strings.Split(strings.ToLower(op), ".")
	base = parts[0]
	cond = ins.CondAl
	for _, p := range parts[1:] {
		switch p {
		case "s":
			flags = true
		case "zz":
			return "", 0, false, false
		case "w", "n":
			// width qualifiers, irrelevant in ARM mode
		default:
			c, found := condFromName(p)
			if !found {
				return "", 0, false, false
			}
			cond = c
		}
	}
	if strings.HasPrefix(base, "op(") {
		return "", 0, false, false
	}
	return base, cond, flags, true
}

func condFromName(name string) (ins.Cond, bool) {
	for c := ins.CondEq; c <= ins.CondLe; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// armMnemonic renders the mnemonic the classifiers match on: base, then
// condition, then the s suffix ("movge", "eors", "addls").
func armMnemonic(base string, cond ins.Cond, flags bool) string {
	// armasm names the increment-after multiple ops without the IA suffix.
	switch base {
	case "stm":
		base = "stmia"
	case "ldm":
		base = "ldmia"
	case "svc":
		base = "swi"
	}
	m := base
	if cond != ins.CondAl {
		m += cond.String()
	}
	if flags {
		m += "s"
	}
	return m
}

// alwaysUpdatesFlags lists the comparison ops that write flags without an S
// suffix.
func alwaysUpdatesFlags(base string) bool {
	switch base {
	case "cmp", "cmn", "tst", "teq":
		return true
	}
	return false
}

// flattenArg converts one armasm argument into the flat operand slots the
// classifiers pattern-match on. Memory references become a dereferenced base
// register followed by offset and shift operands, matching the shape of the
// transition rules.
func flattenArg(arg armasm.Arg, address uint32, put func(ins.Operand)) bool {
	switch a := arg.(type) {
	case armasm.Reg:
		r, ok := coreReg(a)
		if !ok {
			return false
		}
		put(ins.Reg(r))
	case armasm.Imm:
		put(ins.UImm(uint32(a)))
	case armasm.ImmAlt:
		put(ins.UImm(uint32(a.Imm())))
	case armasm.PCRel:
		// Branch offsets are relative to the fetch address two
		// instructions ahead.
		put(ins.BranchTarget(address + 8 + uint32(int32(a))))
	case armasm.Label:
		put(ins.BranchTarget(uint32(a)))
	case armasm.RegList:
		put(ins.Operand{Kind: ins.KindRegList, Regs: ins.RegList(a)})
	case armasm.RegShift:
		r, ok := coreReg(a.Reg)
		if !ok {
			return false
		}
		put(ins.Reg(r))
		put(ins.ShiftImm(shiftOp(a.Shift), uint32(a.Count)))
	case armasm.RegShiftReg:
		r, ok := coreReg(a.Reg)
		if !ok {
			return false
		}
		rc, ok := coreReg(a.RegCount)
		if !ok {
			return false
		}
		put(ins.Reg(r))
		put(ins.ShiftReg(shiftOp(a.Shift), rc))
	case armasm.Mem:
		return flattenMem(a, put)
	default:
		// Float and system operands never appear in the code this tool
		// analyzes.
		return false
	}
	return true
}

func flattenMem(m armasm.Mem, put func(ins.Operand)) bool {
	base, ok := coreReg(m.Base)
	if !ok {
		return false
	}

	switch m.Mode {
	case armasm.AddrLDM:
		put(ins.Reg(base))
		return true
	case armasm.AddrLDM_WB:
		put(ins.WriteBackReg(base))
		return true
	}

	b := ins.DerefReg(base)
	if m.Mode == armasm.AddrPreIndex {
		b.WriteBack = true
	}
	put(b)

	if m.Sign != 0 {
		idx, ok := coreReg(m.Index)
		if !ok {
			return false
		}
		if m.Sign < 0 {
			put(ins.SubOffsetReg(idx))
		} else {
			put(ins.OffsetReg(idx))
		}
		if m.Shift != armasm.ShiftLeft || m.Count != 0 {
			put(ins.ShiftImm(shiftOp(m.Shift), uint32(m.Count)))
		}
		return true
	}

	off := ins.OffsetImm(int32(m.Offset))
	if m.Mode == armasm.AddrPostIndex {
		off.Post = true
	}
	put(off)
	return true
}

func coreReg(r armasm.Reg) (ins.Register, bool) {
	if r > armasm.R15 {
		return 0, false
	}
	return ins.Register(r), true
}

func shiftOp(s armasm.Shift) ins.Shift {
	switch s {
	case armasm.ShiftLeft:
		return ins.ShiftLsl
	case armasm.ShiftRight:
		return ins.ShiftLsr
	case armasm.ShiftRightSigned:
		return ins.ShiftAsr
	case armasm.RotateRight:
		return ins.ShiftRor
	default:
		return ins.ShiftRrx
	}
}
