package analysis

import "dsdelink/internal/ins"

// IsValidFunctionStart reports whether the instruction is plausible as the
// first instruction of a function. The rejects are heuristics for byte
// patterns (tables, strings, padding) that happen to decode, tuned against
// retail games.
func IsValidFunctionStart(i *ins.Ins) bool {
	if i.Mode == ins.ModeThumb {
		return isValidFunctionStartThumb(i)
	}
	return isValidFunctionStartArm(i)
}

func isValidFunctionStartArm(i *ins.Ins) bool {
	if i.IsIllegal || i.IsConditional() {
		return false
	}
	args := &i.Args
	if i.Mnemonic == "eor" &&
		args[0].Kind == ins.KindReg && args[1].Kind == ins.KindReg &&
		args[2].Kind == ins.KindReg && args[3].IsNone() {
		a, b, c := args[0].Reg, args[1].Reg, args[2].Reg
		if a == b || a == c || b == c {
			// Weird EOR, likely misread data
			return false
		}
	}
	return true
}

func isArgRegOrSpPc(r ins.Register) bool {
	return r <= ins.R3 || r == ins.Sp || r == ins.Pc
}

var thumbDataOps = map[string]bool{
	"lsls": true, "lsrs": true, "asrs": true, "rors": true,
	"adds": true, "subs": true, "movs": true, "mov": true, "add": true,
	"cmp": true, "cmn": true, "tst": true, "negs": true,
	"ands": true, "eors": true, "adcs": true, "sbcs": true,
	"orrs": true, "muls": true, "bics": true, "mvns": true,
}

func isValidFunctionStartThumb(i *ins.Ins) bool {
	if i.IsIllegal || i.Mnemonic == "bl" || i.Mnemonic == "blx" {
		return false
	}
	args := &i.Args

	if thumbDataOps[i.Mnemonic] {
		if args[1].Kind == ins.KindReg && !isArgRegOrSpPc(args[1].Reg) {
			// Data operand must be an argument register, SP or PC
			return false
		}
	}

	switch i.Mnemonic {
	case "mov", "movs":
		if args[0].Kind == ins.KindReg && args[1].Kind == ins.KindReg &&
			args[0].Reg == args[1].Reg && args[2].IsNone() {
			// Useless mov
			return false
		}
	case "lsl", "lsls", "lsr", "lsrs":
		if args[0].Kind == ins.KindReg && args[1].Kind == ins.KindReg && args[2].Kind == ins.KindUImm && args[3].IsNone() {
			shift := args[2].Imm
			if shift == 0 && args[0].Reg == args[1].Reg {
				// Useless shift
				return false
			}
			if shift%4 == 0 && shift != 16 && shift != 24 {
				// A table of bytes with values 0-7 decodes to this.
				// 16 and 24 are kept since they appear in integer casts.
				return false
			}
		}
	}

	switch i.Mnemonic {
	case "ldr", "ldrh", "ldrb", "ldrsh", "ldrsb", "str", "strb", "strh":
		if args[1].Kind == ins.KindReg && args[1].Deref && !isArgRegOrSpPc(args[1].Reg) {
			// Load/store base must be an argument register, SP or PC
			return false
		}
		if (i.Mnemonic == "strh" || i.Mnemonic == "strb") &&
			args[0].Kind == ins.KindReg && args[1].Kind == ins.KindReg && args[1].Deref &&
			args[0].Reg == args[1].Reg {
			// *ptr = (u8) ptr never appears in real code
			return false
		}
		if args[2].Kind == ins.KindOffsetReg && args[2].Reg > ins.R3 {
			// Offset register must be an argument register
			return false
		}
	}

	return true
}

// IsThumbFunction guesses the mode of a function starting at address. ARM
// functions open with an unconditional (AL) instruction; Thumb is assumed
// otherwise.
func IsThumbFunction(address uint32, code []byte) bool {
	if address&3 != 0 {
		// Not 4-aligned, must be Thumb
		return true
	}
	if len(code) < 4 {
		return true
	}
	return code[3]&0xf0 != 0xe0
}
