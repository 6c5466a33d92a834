package analysis

import (
	"encoding/binary"
	"errors"
	"fmt"

	"dsdelink/internal/disasm"
	"dsdelink/internal/ins"
)

// Errors from resolving a program entry point. The resolver makes hard
// structural assumptions about the entry function and never falls back to
// other heuristics; callers test these with errors.Is.
var (
	// ErrNoPoolConstants means the entry function loads nothing from a
	// constant pool, so there is no address to branch to.
	ErrNoPoolConstants = errors.New("analysis: entry function has no pool constants")
	// ErrMissingIndirectBranch means the entry function does not end in
	// `bx <reg>`.
	ErrMissingIndirectBranch = errors.New("analysis: entry function does not end in an indirect branch")
	// ErrNoTailCall means no `ldr Rd, [pc, #imm]` into the branch
	// register precedes the constant pool.
	ErrNoTailCall = errors.New("analysis: no tail call found in entry function")
	// ErrConstantOutOfRange means the tail call's pool constant lies
	// outside the entry function's code.
	ErrConstantOutOfRange = errors.New("analysis: entry function tail call constant out of range")
)

// ResolveTailCall recovers the address the entry function hands control to.
// A ROM's entry function sets up the runtime and ends with `bx <reg>`, where
// the register was loaded from a pool constant; the value of that constant is
// the program's real start. moduleCode starts at baseAddress and must cover
// the whole function.
func ResolveTailCall(function *Function, moduleCode []byte, baseAddress uint32) (uint32, error) {
	firstPool, ok := function.PoolConstants.Min()
	if !ok {
		return 0, ErrNoPoolConstants
	}

	functionCode := function.Code(moduleCode, baseAddress)
	mode := function.Mode()

	lastInsAddr := firstPool - mode.InstructionSize()
	parser := disasm.NewParser(mode, function.StartAddress, functionCode)
	parser.SeekForward(lastInsAddr)
	last, ok := parser.Next()
	if !ok {
		return 0, fmt.Errorf("%w: function ends at %#x", ErrMissingIndirectBranch, function.EndAddress)
	}
	if last.Mnemonic != "bx" || last.Args[0].Kind != ins.KindReg || !last.Args[1].IsNone() {
		return 0, fmt.Errorf("%w: last instruction is %q", ErrMissingIndirectBranch, last.String())
	}
	tailCallReg := last.Args[0].Reg

	var poolAddress uint32
	found := false
	parser = disasm.NewParser(mode, function.StartAddress, functionCode)
	for {
		i, ok := parser.Next()
		if !ok || function.PoolConstants.Contains(i.Address) {
			break
		}
		args := &i.Args
		if i.Mnemonic != "ldr" ||
			!args[0].IsReg(tailCallReg) || !args[1].IsDerefReg(ins.Pc) ||
			args[2].Kind != ins.KindOffsetImm || args[2].Post || !args[3].IsNone() {
			continue
		}
		poolAddress = uint32(int32(i.Address)+args[2].SImm) &^ 3
		if function.Thumb {
			poolAddress += 4
		} else {
			poolAddress += 8
		}
		found = true
	}
	if !found {
		return 0, ErrNoTailCall
	}

	offset := poolAddress - function.StartAddress
	if int64(offset)+4 > int64(len(functionCode)) {
		return 0, fmt.Errorf("%w: constant at %#x", ErrConstantOutOfRange, poolAddress)
	}
	target := binary.LittleEndian.Uint32(functionCode[offset:])
	return target &^ 1, nil
}

// FindMainFunction parses the entry function at entryAddress and resolves its
// tail call to locate the main function of a module.
func FindMainFunction(moduleCode []byte, baseAddress, entryAddress, moduleEndAddress uint32) (uint32, error) {
	result := ParseFunction(ParseFunctionOptions{
		Name:               "entry",
		StartAddress:       entryAddress,
		BaseAddress:        baseAddress,
		ModuleCode:         moduleCode,
		ModuleStartAddress: baseAddress,
		ModuleEndAddress:   moduleEndAddress,
	})
	if result.Kind != ResultFound {
		return 0, fmt.Errorf("analysis: entry function at %#x: %s", entryAddress, result.String())
	}
	return ResolveTailCall(result.Function, moduleCode, baseAddress)
}
