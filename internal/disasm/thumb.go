package disasm

import (
	"encoding/binary"

	"dsdelink/internal/ins"
)

// decodeThumb decodes one Thumb instruction. Formats follow Figure 5-1 of the
// ARM7TDMI data sheet, checked from most to least specific mask. BL/BLX pairs
// decode as a single 4-byte instruction; an unpaired half is illegal.
func decodeThumb(code []byte, address uint32) ins.Ins {
	if len(code) < 2 {
		return illegalIns(address, ins.ModeThumb, 2)
	}
	op := binary.LittleEndian.Uint16(code)

	switch {
	case op&0xf800 == 0xf000:
		// format 19 - long branch with link (prefix half)
		return decodeThumbBl(code, address, op)
	case op&0xf800 == 0xf800 || op&0xf800 == 0xe800:
		// BL/BLX suffix half without its prefix
		return illegalIns(address, ins.ModeThumb, 2)
	case op&0xf800 == 0xe000:
		// format 18 - unconditional branch
		off := signExtend(uint32(op&0x7ff)<<1, 12)
		return thumbIns(address, "b", false, ins.CondAl,
			ins.BranchTarget(uint32(int32(address)+4+off)))
	case op&0xff00 == 0xdf00:
		// format 17 - software interrupt
		return thumbIns(address, "swi", false, ins.CondAl, ins.UImm(uint32(op&0xff)))
	case op&0xf000 == 0xd000:
		// format 16 - conditional branch
		cond := ins.Cond(op>>8&0xf + 1)
		if cond > ins.CondLe {
			// cond 0b1110 is permanently undefined
			return illegalIns(address, ins.ModeThumb, 2)
		}
		off := signExtend(uint32(op&0xff)<<1, 9)
		return thumbIns(address, "b"+cond.String(), false, cond,
			ins.BranchTarget(uint32(int32(address)+4+off)))
	case op&0xf000 == 0xc000:
		// format 15 - multiple load/store
		mn := "stmia"
		if op&0x0800 != 0 {
			mn = "ldmia"
		}
		base := ins.Register(op >> 8 & 7)
		return thumbIns(address, mn, false, ins.CondAl,
			ins.WriteBackReg(base),
			ins.Operand{Kind: ins.KindRegList, Regs: ins.RegList(op & 0xff)})
	case op&0xf600 == 0xb400:
		// format 14 - push/pop registers
		list := ins.RegList(op & 0xff)
		mn := "push"
		if op&0x0800 != 0 {
			mn = "pop"
			if op&0x0100 != 0 {
				list |= 1 << ins.Pc
			}
		} else if op&0x0100 != 0 {
			list |= 1 << ins.Lr
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Operand{Kind: ins.KindRegList, Regs: list})
	case op&0xff00 == 0xb000:
		// format 13 - add offset to stack pointer
		imm := uint32(op&0x7f) << 2
		mn := "add"
		if op&0x0080 != 0 {
			mn = "sub"
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Sp), ins.UImm(imm))
	case op&0xf000 == 0xa000:
		// format 12 - load address
		src := ins.Pc
		if op&0x0800 != 0 {
			src = ins.Sp
		}
		return thumbIns(address, "add", false, ins.CondAl,
			ins.Reg(ins.Register(op>>8&7)), ins.Reg(src), ins.UImm(uint32(op&0xff)<<2))
	case op&0xf000 == 0x9000:
		// format 11 - SP-relative load/store
		mn := "str"
		if op&0x0800 != 0 {
			mn = "ldr"
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Register(op>>8&7)), ins.DerefReg(ins.Sp),
			ins.OffsetImm(int32(op&0xff)<<2))
	case op&0xf000 == 0x8000:
		// format 10 - load/store halfword
		mn := "strh"
		if op&0x0800 != 0 {
			mn = "ldrh"
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Register(op&7)), ins.DerefReg(ins.Register(op>>3&7)),
			ins.OffsetImm(int32(op>>6&0x1f)<<1))
	case op&0xe000 == 0x6000:
		// format 9 - load/store with immediate offset
		var mn string
		shift := 2
		switch op >> 11 & 3 {
		case 0:
			mn = "str"
		case 1:
			mn = "ldr"
		case 2:
			mn, shift = "strb", 0
		case 3:
			mn, shift = "ldrb", 0
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Register(op&7)), ins.DerefReg(ins.Register(op>>3&7)),
			ins.OffsetImm(int32(op>>6&0x1f)<<shift))
	case op&0xf200 == 0x5200:
		// format 8 - load/store sign-extended byte/halfword
		var mn string
		switch op >> 10 & 3 {
		case 0:
			mn = "strh"
		case 1:
			mn = "ldrsb"
		case 2:
			mn = "ldrh"
		case 3:
			mn = "ldrsh"
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Register(op&7)), ins.DerefReg(ins.Register(op>>3&7)),
			ins.OffsetReg(ins.Register(op>>6&7)))
	case op&0xf200 == 0x5000:
		// format 7 - load/store with register offset
		var mn string
		switch op >> 10 & 3 {
		case 0:
			mn = "str"
		case 1:
			mn = "strb"
		case 2:
			mn = "ldr"
		case 3:
			mn = "ldrb"
		}
		return thumbIns(address, mn, false, ins.CondAl,
			ins.Reg(ins.Register(op&7)), ins.DerefReg(ins.Register(op>>3&7)),
			ins.OffsetReg(ins.Register(op>>6&7)))
	case op&0xf800 == 0x4800:
		// format 6 - PC-relative load
		return thumbIns(address, "ldr", false, ins.CondAl,
			ins.Reg(ins.Register(op>>8&7)), ins.DerefReg(ins.Pc),
			ins.OffsetImm(int32(op&0xff)<<2))
	case op&0xfc00 == 0x4400:
		// format 5 - hi register operations / branch exchange
		return decodeThumbHiReg(address, op)
	case op&0xfc00 == 0x4000:
		// format 4 - ALU operations
		return decodeThumbALU(address, op)
	case op&0xe000 == 0x2000:
		// format 3 - move/compare/add/subtract immediate
		var mn string
		flags := true
		switch op >> 11 & 3 {
		case 0:
			mn = "movs"
		case 1:
			mn = "cmp"
		case 2:
			mn = "adds"
		case 3:
			mn = "subs"
		}
		return thumbIns(address, mn, flags, ins.CondAl,
			ins.Reg(ins.Register(op>>8&7)), ins.UImm(uint32(op&0xff)))
	case op&0xf800 == 0x1800:
		// format 2 - add/subtract
		mn := "adds"
		if op&0x0200 != 0 {
			mn = "subs"
		}
		rd, rs := ins.Register(op&7), ins.Register(op>>3&7)
		if op&0x0400 != 0 {
			return thumbIns(address, mn, true, ins.CondAl,
				ins.Reg(rd), ins.Reg(rs), ins.UImm(uint32(op>>6&7)))
		}
		return thumbIns(address, mn, true, ins.CondAl,
			ins.Reg(rd), ins.Reg(rs), ins.Reg(ins.Register(op>>6&7)))
	case op&0xe000 == 0x0000:
		// format 1 - move shifted register
		var mn string
		switch op >> 11 & 3 {
		case 0:
			mn = "lsls"
		case 1:
			mn = "lsrs"
		case 2:
			mn = "asrs"
		}
		return thumbIns(address, mn, true, ins.CondAl,
			ins.Reg(ins.Register(op&7)), ins.Reg(ins.Register(op>>3&7)),
			ins.UImm(uint32(op>>6&0x1f)))
	}
	return illegalIns(address, ins.ModeThumb, 2)
}

var thumbALUNames = [16]string{
	"ands", "eors", "lsls", "lsrs", "asrs", "adcs", "sbcs", "rors",
	"tst", "negs", "cmp", "cmn", "orrs", "muls", "bics", "mvns",
}

func decodeThumbALU(address uint32, op uint16) ins.Ins {
	mn := thumbALUNames[op>>6&0xf]
	return thumbIns(address, mn, true, ins.CondAl,
		ins.Reg(ins.Register(op&7)), ins.Reg(ins.Register(op>>3&7)))
}

func decodeThumbHiReg(address uint32, op uint16) ins.Ins {
	rd := ins.Register(op & 7)
	if op&0x0080 != 0 {
		rd += 8
	}
	rs := ins.Register(op >> 3 & 7)
	if op&0x0040 != 0 {
		rs += 8
	}
	switch op >> 8 & 3 {
	case 0:
		return thumbIns(address, "add", false, ins.CondAl, ins.Reg(rd), ins.Reg(rs))
	case 1:
		return thumbIns(address, "cmp", true, ins.CondAl, ins.Reg(rd), ins.Reg(rs))
	case 2:
		return thumbIns(address, "mov", false, ins.CondAl, ins.Reg(rd), ins.Reg(rs))
	default:
		mn := "bx"
		if op&0x0080 != 0 {
			// H1 repurposed as BLX on ARMv5T
			mn = "blx"
		}
		return thumbIns(address, mn, false, ins.CondAl, ins.Reg(rs))
	}
}

// decodeThumbBl combines a BL/BLX prefix half with its suffix half.
func decodeThumbBl(code []byte, address uint32, op uint16) ins.Ins {
	if len(code) < 4 {
		return illegalIns(address, ins.ModeThumb, 2)
	}
	suffix := binary.LittleEndian.Uint16(code[2:])
	high := signExtend(uint32(op&0x7ff)<<12, 23)
	target := uint32(int32(address) + 4 + high + int32(suffix&0x7ff)<<1)

	var out ins.Ins
	switch suffix & 0xf800 {
	case 0xf800:
		out = thumbIns(address, "bl", false, ins.CondAl, ins.BranchTarget(target))
	case 0xe800:
		out = thumbIns(address, "blx", false, ins.CondAl, ins.BranchTarget(target&^3))
	default:
		return illegalIns(address, ins.ModeThumb, 2)
	}
	out.Size = 4
	return out
}

func thumbIns(address uint32, mnemonic string, flags bool, cond ins.Cond, args ...ins.Operand) ins.Ins {
	i := ins.New(mnemonic, args...)
	i.Address = address
	i.Mode = ins.ModeThumb
	i.Cond = cond
	i.Size = 2
	i.UpdatesFlags = flags
	return i
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
