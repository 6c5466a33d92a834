// Package analysis recovers function boundaries, embedded data and relocation
// targets from raw ARM9/ARM7 instruction streams. The classifiers in this
// package are small state machines stepped once per decoded instruction in
// ascending address order; their verdicts are advisory and consumed by the
// boundary walker in this package.
package analysis

import "dsdelink/internal/ins"

// FuncBranchState detects `b` instructions (not `bl`) that jump to other
// functions. They are not produced by C/C++ compilers but appear in hand
// written assembly; the boundary walker would otherwise treat every local
// looking branch as part of the current function.
//
// The pattern set is empirically discovered from shipped games, not derived
// from the ISA. It is matched only in the exact windows below because a false
// positive silently corrupts function boundaries; do not extend it.
type FuncBranchState uint8

const (
	FuncBranchStart FuncBranchState = iota
	funcBranchEors
	funcBranchMovgePcLr
	funcBranchMovFromSp
	funcBranchLdrIpPc
	funcBranchAddR0Ip
	funcBranchFound
)

// Handle steps the state machine. It is total: any instruction in any state
// yields a defined next state.
func (s FuncBranchState) Handle(i *ins.Ins) FuncBranchState {
	args := &i.Args
	switch s {
	case funcBranchFound:
		return FuncBranchStart
	case FuncBranchStart:
		switch {
		case i.Mnemonic == "eors" &&
			args[0].Kind == ins.KindReg && args[1].Kind == ins.KindReg &&
			args[2].Kind == ins.KindReg && args[3].IsNone():
			return funcBranchEors
		case i.Mnemonic == "movge" && args[0].IsReg(ins.Pc) && args[1].IsReg(ins.Lr) && args[2].IsNone():
			return funcBranchMovgePcLr
		case i.Mnemonic == "mov" && args[0].Kind == ins.KindReg && args[1].IsReg(ins.Sp) && args[2].IsNone():
			return funcBranchMovFromSp
		case i.Mnemonic == "ldr" && args[0].IsReg(ins.R12) && args[1].IsDerefReg(ins.Pc) &&
			args[2].Kind == ins.KindOffsetImm && args[3].IsNone():
			return funcBranchLdrIpPc
		}
		return FuncBranchStart
	case funcBranchEors:
		if i.Mnemonic == "bmi" && args[0].Kind == ins.KindBranch && args[1].IsNone() {
			return funcBranchFound
		}
		if i.UpdatesFlags {
			return FuncBranchStart
		}
		return s
	case funcBranchMovgePcLr, funcBranchMovFromSp:
		if i.Mnemonic == "b" && args[0].Kind == ins.KindBranch && args[1].IsNone() {
			return funcBranchFound
		}
		return FuncBranchStart
	case funcBranchLdrIpPc:
		if i.Mnemonic == "add" && args[0].IsReg(ins.R0) && args[1].IsReg(ins.R0) &&
			args[2].IsReg(ins.R12) && args[3].IsNone() {
			return funcBranchAddR0Ip
		}
		return FuncBranchStart
	case funcBranchAddR0Ip:
		if i.Mnemonic == "b" && args[0].Kind == ins.KindBranch && args[1].IsNone() {
			return funcBranchFound
		}
		return FuncBranchStart
	}
	return FuncBranchStart
}

// IsFunctionBranch reports whether the instruction just handled was a branch
// into another function.
func (s FuncBranchState) IsFunctionBranch() bool { return s == funcBranchFound }
