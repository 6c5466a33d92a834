package analysis

import "dsdelink/internal/ins"

// JumpTable is a switch-dispatch table found inside a function body.
type JumpTable struct {
	Address uint32
	Size    uint32
	// Code is true when the table entries are branch instructions rather
	// than 16-bit data offsets.
	Code bool
}

type jtArmKind uint8

const (
	// cmp index, #size
	jtArmCmpReg jtArmKind = iota
	// addls pc, pc, index, lsl #2 to jump, or bgt to skip a signed table
	jtArmJumpOrBranchSigned
	// cmp index, #0 checks that a signed index is non-negative
	jtArmSignedBaseline
	// addge pc, pc, index, lsl #2
	jtArmJumpSigned
	jtArmValid
)

// JumpTableStateArm recognizes the ARM jump table dispatch sequence, both
// the unsigned and the signed-index form. Tables found are recorded in the
// map passed to Handle.
type JumpTableStateArm struct {
	kind         jtArmKind
	index        ins.Register
	limit        uint32
	tableAddress uint32
}

func (s JumpTableStateArm) checkStart(i *ins.Ins) (JumpTableStateArm, bool) {
	args := &i.Args
	if i.Mnemonic == "cmp" &&
		args[0].Kind == ins.KindReg && args[1].Kind == ins.KindUImm && args[2].IsNone() &&
		args[1].Imm > 0 {
		return JumpTableStateArm{kind: jtArmJumpOrBranchSigned, index: args[0].Reg, limit: args[1].Imm}, true
	}
	return JumpTableStateArm{}, false
}

func isJumpDispatch(i *ins.Ins, mnemonic string, index ins.Register) bool {
	args := &i.Args
	return i.Mnemonic == mnemonic &&
		args[0].IsReg(ins.Pc) && args[1].IsReg(ins.Pc) &&
		args[2].Kind == ins.KindReg && args[2].Reg == index &&
		args[3].Kind == ins.KindShiftImm && args[3].Shift == ins.ShiftLsl && args[3].Imm == 2 &&
		args[4].IsNone()
}

func (s JumpTableStateArm) Handle(address uint32, i *ins.Ins, tables map[uint32]JumpTable) JumpTableStateArm {
	if next, ok := s.checkStart(i); ok {
		return next
	}

	args := &i.Args
	switch s.kind {
	case jtArmCmpReg:
		return JumpTableStateArm{}
	case jtArmJumpOrBranchSigned:
		if isJumpDispatch(i, "addls", s.index) {
			tableAddress := address + 8
			tables[tableAddress] = JumpTable{Address: tableAddress, Size: (s.limit + 1) * 4, Code: true}
			return JumpTableStateArm{kind: jtArmValid, tableAddress: tableAddress, limit: s.limit}
		}
		if i.Mnemonic == "bgt" && args[0].Kind == ins.KindBranch && args[1].IsNone() {
			return JumpTableStateArm{kind: jtArmSignedBaseline, index: s.index, limit: s.limit}
		}
		if i.UpdatesFlags {
			return JumpTableStateArm{}
		}
		return s
	case jtArmSignedBaseline:
		if i.Mnemonic == "cmp" &&
			args[0].IsReg(s.index) && args[1].Kind == ins.KindUImm && args[1].Imm == 0 && args[2].IsNone() {
			return JumpTableStateArm{kind: jtArmJumpSigned, index: s.index, limit: s.limit}
		}
		return JumpTableStateArm{}
	case jtArmJumpSigned:
		if isJumpDispatch(i, "addge", s.index) {
			tableAddress := address + 8
			tables[tableAddress] = JumpTable{Address: tableAddress, Size: (s.limit + 1) * 4, Code: true}
			return JumpTableStateArm{kind: jtArmValid, tableAddress: tableAddress, limit: s.limit}
		}
		if i.UpdatesFlags {
			return JumpTableStateArm{}
		}
		return s
	case jtArmValid:
		if address > s.tableAddress+s.limit*4 {
			return JumpTableStateArm{}
		}
		return s
	}
	return JumpTableStateArm{}
}

// TableEnd returns the address just past the current table, if inside one.
func (s JumpTableStateArm) TableEnd() (uint32, bool) {
	if s.kind == jtArmValid {
		return s.tableAddress + (s.limit+1)*4, true
	}
	return 0, false
}

type jtThumbKind uint8

const (
	// cmp index, #size
	jtThumbCmpReg jtThumbKind = iota
	// bhi @skip, bls @jump, or bgt @skip (signed)
	jtThumbBranchCond
	// b @skip after a bls
	jtThumbBranch
	// cmp index, #0 / mov new, index / sub index, #base after a bgt
	jtThumbSignedBaseline
	// blt or bmi @skip
	jtThumbBranchNegative
	// add offset, index, index
	jtThumbAddRegReg
	// add offset, pc
	jtThumbAddRegPc
	// ldrh jump, [offset, #imm]
	jtThumbLoadOffset
	// lsl jump, jump, #0x10
	jtThumbSignExtendLsl
	// asr jump, jump, #0x10
	jtThumbSignExtendAsr
	// add pc, jump
	jtThumbAddPcReg
	jtThumbValid
)

// JumpTableStateThumb recognizes the Thumb jump table dispatch sequence,
// which loads sign-extended 16-bit offsets from an inline table and adds
// them to PC.
type JumpTableStateThumb struct {
	kind         jtThumbKind
	index        ins.Register
	offset       ins.Register
	jump         ins.Register
	limit        uint32
	pcBase       uint32
	tableAddress uint32
}

func (s JumpTableStateThumb) checkStart(i *ins.Ins) (JumpTableStateThumb, bool) {
	args := &i.Args
	if i.Mnemonic == "cmp" &&
		args[0].Kind == ins.KindReg && args[1].Kind == ins.KindUImm && args[2].IsNone() &&
		args[1].Imm > 0 {
		return JumpTableStateThumb{kind: jtThumbBranchCond, index: args[0].Reg, limit: args[1].Imm}, true
	}
	return JumpTableStateThumb{}, false
}

func isCondBranch(i *ins.Ins, mnemonic string) bool {
	return i.Mnemonic == mnemonic && i.Args[0].Kind == ins.KindBranch && i.Args[1].IsNone()
}

func (s JumpTableStateThumb) Handle(address uint32, i *ins.Ins, tables map[uint32]JumpTable) JumpTableStateThumb {
	if next, ok := s.checkStart(i); ok {
		return next
	}

	args := &i.Args
	switch s.kind {
	case jtThumbCmpReg:
		return JumpTableStateThumb{}
	case jtThumbBranchCond:
		switch {
		case isCondBranch(i, "bhi"):
			return JumpTableStateThumb{kind: jtThumbAddRegReg, index: s.index, limit: s.limit}
		case isCondBranch(i, "bls"):
			return JumpTableStateThumb{kind: jtThumbBranch, index: s.index, limit: s.limit}
		case isCondBranch(i, "bgt"):
			return JumpTableStateThumb{kind: jtThumbSignedBaseline, index: s.index, limit: s.limit}
		case i.UpdatesFlags:
			return JumpTableStateThumb{}
		}
		return s
	case jtThumbBranch:
		if isCondBranch(i, "b") {
			return JumpTableStateThumb{kind: jtThumbAddRegReg, index: s.index, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbSignedBaseline:
		switch {
		case i.Mnemonic == "cmp" && args[0].IsReg(s.index) &&
			args[1].Kind == ins.KindUImm && args[1].Imm == 0 && args[2].IsNone():
			return JumpTableStateThumb{kind: jtThumbBranchNegative, index: s.index, limit: s.limit}
		case (i.Mnemonic == "mov" || i.Mnemonic == "movs") &&
			args[0].Kind == ins.KindReg && args[1].IsReg(s.index) && args[2].IsNone():
			return JumpTableStateThumb{kind: jtThumbSignedBaseline, index: args[0].Reg, limit: s.limit}
		case (i.Mnemonic == "sub" || i.Mnemonic == "subs") &&
			args[0].IsReg(s.index) && args[1].Kind == ins.KindUImm && args[2].IsNone():
			return JumpTableStateThumb{kind: jtThumbBranchNegative, index: s.index, limit: s.limit - args[1].Imm}
		}
		return JumpTableStateThumb{}
	case jtThumbBranchNegative:
		if isCondBranch(i, "blt") || isCondBranch(i, "bmi") {
			return JumpTableStateThumb{kind: jtThumbAddRegReg, index: s.index, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbAddRegReg:
		if (i.Mnemonic == "add" || i.Mnemonic == "adds") &&
			args[0].Kind == ins.KindReg &&
			args[1].IsReg(s.index) && args[2].IsReg(s.index) && args[3].IsNone() {
			return JumpTableStateThumb{kind: jtThumbAddRegPc, offset: args[0].Reg, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbAddRegPc:
		if i.Mnemonic == "add" &&
			args[0].IsReg(s.offset) && args[1].IsReg(ins.Pc) && args[2].IsNone() {
			return JumpTableStateThumb{kind: jtThumbLoadOffset, offset: s.offset, limit: s.limit, pcBase: address}
		}
		return JumpTableStateThumb{}
	case jtThumbLoadOffset:
		if i.Mnemonic == "ldrh" &&
			args[0].IsReg(s.offset) && args[1].IsDerefReg(s.offset) &&
			args[2].Kind == ins.KindOffsetImm && !args[2].Post && args[3].IsNone() {
			tableAddress := uint32(int32(s.pcBase) - 2 + args[2].SImm)
			return JumpTableStateThumb{kind: jtThumbSignExtendLsl, jump: s.offset, tableAddress: tableAddress, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbSignExtendLsl:
		if isSignExtendShift(i, "lsl", "lsls", s.jump) {
			return JumpTableStateThumb{kind: jtThumbSignExtendAsr, jump: s.jump, tableAddress: s.tableAddress, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbSignExtendAsr:
		if isSignExtendShift(i, "asr", "asrs", s.jump) {
			return JumpTableStateThumb{kind: jtThumbAddPcReg, jump: s.jump, tableAddress: s.tableAddress, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbAddPcReg:
		if i.Mnemonic == "add" &&
			args[0].IsReg(ins.Pc) && args[1].IsReg(s.jump) && args[2].IsNone() {
			tables[s.tableAddress] = JumpTable{Address: s.tableAddress, Size: (s.limit + 1) * 2, Code: false}
			return JumpTableStateThumb{kind: jtThumbValid, tableAddress: s.tableAddress, limit: s.limit}
		}
		return JumpTableStateThumb{}
	case jtThumbValid:
		if address > s.tableAddress+s.limit*2 {
			return JumpTableStateThumb{}
		}
		return s
	}
	return JumpTableStateThumb{}
}

func isSignExtendShift(i *ins.Ins, base, flags string, jump ins.Register) bool {
	args := &i.Args
	return (i.Mnemonic == base || i.Mnemonic == flags) &&
		args[0].IsReg(jump) && args[1].IsReg(jump) &&
		args[2].Kind == ins.KindUImm && args[2].Imm == 0x10 && args[3].IsNone()
}

// TableEnd returns the address just past the current table, if inside one.
func (s JumpTableStateThumb) TableEnd() (uint32, bool) {
	if s.kind == jtThumbValid {
		return s.tableAddress + (s.limit+1)*2, true
	}
	return 0, false
}

// InTable reports whether the parser is currently inside a detected table,
// meaning the halfwords at hand are jump offsets rather than instructions.
func (s JumpTableStateThumb) InTable() bool { return s.kind == jtThumbValid }

// Label resolves a table entry at address, whose raw halfword is code, to
// the branch label it dispatches to. Returns false when address is outside
// the current table.
func (s JumpTableStateThumb) Label(address uint32, code uint16) (uint32, bool) {
	if s.kind != jtThumbValid {
		return 0, false
	}
	if address < s.tableAddress || address > s.tableAddress+s.limit*2 {
		return 0, false
	}
	return uint32(int32(s.tableAddress) + int32(int16(code)) + 2), true
}
