package analysis

import (
	"dsdelink/internal/disasm"
	"dsdelink/internal/ins"
)

// SwiFunction is a BIOS call. The secure area implements tiny Thumb wrappers
// around these, which the walker cannot find on its own since they have no
// prologue.
type SwiFunction uint8

const (
	SwiSoftReset SwiFunction = iota
	SwiWaitByLoop
	SwiIntrWait
	SwiVBlankIntrWait
	SwiHalt
	SwiDiv
	SwiMod
	SwiCpuSet
	SwiCpuFastSet
	SwiSqrt
	SwiGetCRC16
	SwiIsDebugger
	SwiBitUnPack
	SwiLZ77UnCompReadNormalWrite8bit
	SwiLZ77UnCompReadByCallbackWrite16bit
	SwiHuffUnCompReadByCallback
	SwiRLUnCompReadNormalWrite8bit
	SwiRLUnCompReadByCallbackWrite16bit
)

var swiByInterrupt = map[uint32]SwiFunction{
	0x0:  SwiSoftReset,
	0x3:  SwiWaitByLoop,
	0x4:  SwiIntrWait,
	0x5:  SwiVBlankIntrWait,
	0x6:  SwiHalt,
	0x9:  SwiDiv,
	0xb:  SwiCpuSet,
	0xc:  SwiCpuFastSet,
	0xd:  SwiSqrt,
	0xe:  SwiGetCRC16,
	0xf:  SwiIsDebugger,
	0x10: SwiBitUnPack,
	0x11: SwiLZ77UnCompReadNormalWrite8bit,
	0x12: SwiLZ77UnCompReadByCallbackWrite16bit,
	0x13: SwiHuffUnCompReadByCallback,
	0x14: SwiRLUnCompReadNormalWrite8bit,
	0x15: SwiRLUnCompReadByCallbackWrite16bit,
}

var swiNames = [...]string{
	SwiSoftReset:                          "SoftReset",
	SwiWaitByLoop:                         "WaitByLoop",
	SwiIntrWait:                           "IntrWait",
	SwiVBlankIntrWait:                     "VBlankIntrWait",
	SwiHalt:                               "Halt",
	SwiDiv:                                "Div",
	SwiMod:                                "Mod",
	SwiCpuSet:                             "CpuSet",
	SwiCpuFastSet:                         "CpuFastSet",
	SwiSqrt:                               "Sqrt",
	SwiGetCRC16:                           "GetCRC16",
	SwiIsDebugger:                         "IsDebugger",
	SwiBitUnPack:                          "BitUnPack",
	SwiLZ77UnCompReadNormalWrite8bit:      "LZ77UnCompReadNormalWrite8bit",
	SwiLZ77UnCompReadByCallbackWrite16bit: "LZ77UnCompReadByCallbackWrite16bit",
	SwiHuffUnCompReadByCallback:           "HuffUnCompReadByCallback",
	SwiRLUnCompReadNormalWrite8bit:        "RLUnCompReadNormalWrite8bit",
	SwiRLUnCompReadByCallbackWrite16bit:   "RLUnCompReadByCallbackWrite16bit",
}

// Name returns the BIOS function's name. Interrupt 0x9 is Div when the result
// comes back in r0 and Mod when the wrapper moves r1 into r0 first.
func (f SwiFunction) Name(returnReg ins.Register) string {
	if f == SwiDiv && returnReg == ins.R1 {
		return swiNames[SwiMod]
	}
	return swiNames[f]
}

// SecureAreaFunction is one recognized BIOS wrapper.
type SecureAreaFunction struct {
	Function  SwiFunction
	ReturnReg ins.Register
	Start     uint32
	End       uint32
}

// Name returns the wrapper's conventional symbol name.
func (f *SecureAreaFunction) Name() string { return f.Function.Name(f.ReturnReg) }

type secureKind uint8

const (
	// swi #interrupt
	secureSwi secureKind = iota
	// mov r0, rN to pick the return value, then bx lr
	secureReturn
	secureValid
)

// SecureAreaState recognizes the secure area's BIOS wrapper shape: a swi,
// optional moves into the return register, and bx lr.
type SecureAreaState struct {
	kind      secureKind
	start     uint32
	function  SwiFunction
	returnReg ins.Register
}

func (s SecureAreaState) Handle(address uint32, i *ins.Ins) SecureAreaState {
	args := &i.Args
	switch s.kind {
	case secureSwi:
		if i.Mnemonic == "swi" && args[0].Kind == ins.KindUImm && args[1].IsNone() {
			if function, ok := swiByInterrupt[args[0].Imm]; ok {
				return SecureAreaState{kind: secureReturn, start: address, function: function, returnReg: ins.R0}
			}
		}
		return SecureAreaState{}
	case secureReturn:
		switch {
		case (i.Mnemonic == "mov" || i.Mnemonic == "movs") &&
			args[0].IsReg(s.returnReg) && args[1].Kind == ins.KindReg && args[2].IsNone():
			return SecureAreaState{kind: secureReturn, start: s.start, function: s.function, returnReg: args[1].Reg}
		case i.Mnemonic == "bx" && args[0].IsReg(ins.Lr) && args[1].IsNone():
			return SecureAreaState{kind: secureValid, start: s.start, function: s.function, returnReg: s.returnReg}
		}
		return SecureAreaState{}
	}
	return SecureAreaState{}
}

// Function returns the recognized wrapper, valid right after its bx lr.
func (s SecureAreaState) Function(address uint32) (SecureAreaFunction, bool) {
	if s.kind != secureValid {
		return SecureAreaFunction{}, false
	}
	return SecureAreaFunction{Function: s.function, ReturnReg: s.returnReg, Start: s.start, End: address + 2}, true
}

// FindSecureAreaFunctions scans the secure area for BIOS wrapper functions.
// Every halfword is decoded as Thumb; the wrappers are too small to have a
// detectable prologue so the normal function search misses them.
func FindSecureAreaFunctions(moduleCode []byte, baseAddr uint32) map[uint32]*Function {
	functions := make(map[uint32]*Function)

	address := baseAddr
	var state SecureAreaState
	for off := 0; off+2 <= len(moduleCode); off += 2 {
		halfword := moduleCode[off : off+2]
		i := disasm.Decode(halfword, address, ins.ModeThumb)

		state = state.Handle(address, &i)
		if wrapper, ok := state.Function(address); ok {
			function := &Function{
				Name:                    wrapper.Name(),
				StartAddress:            wrapper.Start,
				EndAddress:              wrapper.End,
				FirstInstructionAddress: wrapper.Start,
				Thumb:                   true,
				JumpTables:              make(map[uint32]JumpTable),
				InlineTables:            make(map[uint32]InlineTable),
				FunctionCalls:           make(map[uint32]CalledFunction),
			}
			functions[function.FirstInstructionAddress] = function
			state = SecureAreaState{}
		}
		address += 2
	}
	return functions
}
