package analysis

import (
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"

	"dsdelink/internal/disasm"
	"dsdelink/internal/ins"
)

// Function is a contiguous range of instructions discovered by the boundary
// walker, along with everything found inside it: branch labels, pool
// constants, jump tables, inline data tables and calls to other functions.
type Function struct {
	Name string
	// StartAddress is where the function's bytes begin, which can be
	// before FirstInstructionAddress when a constant pool precedes the
	// code.
	StartAddress            uint32
	EndAddress              uint32
	FirstInstructionAddress uint32
	Thumb                   bool

	Labels        AddrSet
	PoolConstants AddrSet
	JumpTables    map[uint32]JumpTable
	InlineTables  map[uint32]InlineTable
	FunctionCalls map[uint32]CalledFunction
}

// CalledFunction is one outgoing call or tail call.
type CalledFunction struct {
	Ins     ins.Ins
	Address uint32
	Thumb   bool
}

// PoolConstant is a pool constant address and the value stored there.
type PoolConstant struct {
	Address uint32
	Value   uint32
}

// Size returns the function's size in bytes, pool constants included.
func (f *Function) Size() uint32 { return f.EndAddress - f.StartAddress }

// Mode returns the function's execution mode.
func (f *Function) Mode() ins.Mode {
	if f.Thumb {
		return ins.ModeThumb
	}
	return ins.ModeArm
}

// Code returns the function's bytes within moduleCode, which starts at
// baseAddress.
func (f *Function) Code(moduleCode []byte, baseAddress uint32) []byte {
	return moduleCode[f.StartAddress-baseAddress : f.EndAddress-baseAddress]
}

// InlineTableAt returns the inline table containing address, if any.
func (f *Function) InlineTableAt(address uint32) (InlineTable, bool) {
	return inlineTableAt(f.InlineTables, address)
}

func inlineTableAt(tables map[uint32]InlineTable, address uint32) (InlineTable, bool) {
	for _, t := range tables {
		if address >= t.Address && address < t.Address+t.Size {
			return t, true
		}
	}
	return InlineTable{}, false
}

// Instructions decodes the function's instruction stream, skipping pool
// constants, inline tables and jump table data.
func (f *Function) Instructions(moduleCode []byte, baseAddress uint32) []ins.Ins {
	parser := disasm.NewParser(f.Mode(), f.FirstInstructionAddress,
		moduleCode[f.FirstInstructionAddress-baseAddress:f.EndAddress-baseAddress])

	var insts []ins.Ins
	for {
		addr := parser.Addr()
		if addr >= f.EndAddress {
			break
		}
		if f.PoolConstants.Contains(addr) {
			parser.SeekForward(addr + 4)
			continue
		}
		if table, ok := f.InlineTableAt(addr); ok {
			parser.SeekForward(table.Address + table.Size)
			continue
		}
		if table, ok := f.JumpTables[addr]; ok && !table.Code {
			parser.SeekForward(addr + table.Size)
			continue
		}
		i, ok := parser.Next()
		if !ok {
			break
		}
		insts = append(insts, i)
	}
	return insts
}

// IterPoolConstants reads the value of every pool constant in the function.
func (f *Function) IterPoolConstants(moduleCode []byte, baseAddress uint32) []PoolConstant {
	addrs := f.PoolConstants.All()
	out := make([]PoolConstant, 0, len(addrs))
	for _, addr := range addrs {
		value := binary.LittleEndian.Uint32(moduleCode[addr-baseAddress:])
		out = append(out, PoolConstant{Address: addr, Value: value})
	}
	return out
}

// isEntryInstruction matches the unconditional prologue push of LR, either as
// push or as stmdb sp! in ARM mode.
func isEntryInstruction(i *ins.Ins) bool {
	if i.IsConditional() {
		return false
	}
	args := &i.Args
	switch {
	case i.Mnemonic == "stmdb" &&
		args[0].Kind == ins.KindReg && args[0].Reg == ins.Sp && args[0].WriteBack && !args[0].Deref &&
		args[1].Kind == ins.KindRegList && args[2].IsNone():
		return args[1].Regs.Contains(ins.Lr)
	case i.Mnemonic == "push" && args[0].Kind == ins.KindRegList && args[1].IsNone():
		return args[0].Regs.Contains(ins.Lr)
	}
	return false
}

// condMnemonic reports whether the mnemonic is base, optionally suffixed with
// the instruction's own condition code.
func condMnemonic(i *ins.Ins, base string) bool {
	if i.Mnemonic == base {
		return true
	}
	return i.Cond != ins.CondAl && i.Mnemonic == base+i.Cond.String()
}

// isBranch returns the absolute destination of a plain branch (B, conditional
// or not, but never BL/BLX/BX).
func isBranch(i *ins.Ins) (uint32, bool) {
	if !condMnemonic(i, "b") {
		return 0, false
	}
	if i.Args[0].Kind != ins.KindBranch || !i.Args[1].IsNone() {
		return 0, false
	}
	return i.Args[0].Imm, true
}

// isPoolLoad returns the pool constant address accessed by a PC-relative
// load, `ldr Rd, [pc, #imm]` with Rd != pc.
func isPoolLoad(i *ins.Ins, thumb bool) (uint32, bool) {
	if !condMnemonic(i, "ldr") {
		return 0, false
	}
	args := &i.Args
	if args[0].Kind != ins.KindReg || args[0].Reg == ins.Pc {
		return 0, false
	}
	if !args[1].IsDerefReg(ins.Pc) {
		return 0, false
	}
	if args[2].Kind != ins.KindOffsetImm || args[2].Post {
		return 0, false
	}
	loadAddress := uint32(int32(i.Address)+args[2].SImm) &^ 3
	if thumb {
		loadAddress += 4
	} else {
		loadAddress += 8
	}
	return loadAddress, true
}

// isFunctionCall returns the callee of a BL or BLX instruction. BLX switches
// the callee's mode.
func isFunctionCall(i *ins.Ins, thumb bool) (CalledFunction, bool) {
	args := &i.Args
	if args[0].Kind != ins.KindBranch || !args[1].IsNone() {
		return CalledFunction{}, false
	}
	switch {
	case condMnemonic(i, "bl"):
		return CalledFunction{Ins: *i, Address: args[0].Imm, Thumb: thumb}, true
	case condMnemonic(i, "blx"):
		destination := args[0].Imm
		if thumb {
			destination &^= 3
		}
		return CalledFunction{Ins: *i, Address: destination, Thumb: !thumb}, true
	}
	return CalledFunction{}, false
}

// ParseResultKind says how parsing a candidate function ended.
type ParseResultKind uint8

const (
	// ResultFound means a well-formed function was recovered.
	ResultFound ParseResultKind = iota
	// ResultIllegalIns means an instruction inside the candidate cannot
	// be real code.
	ResultIllegalIns
	// ResultNoEpilogue means the candidate ran past the module end
	// without a return.
	ResultNoEpilogue
	// ResultInvalidStart means the first instruction is implausible as a
	// function start.
	ResultInvalidStart
)

// ParseFunctionResult is the outcome of parsing one candidate function.
// Function is set for ResultFound; Address and Ins describe the offending
// instruction for ResultIllegalIns and ResultInvalidStart.
type ParseFunctionResult struct {
	Kind     ParseResultKind
	Function *Function
	Address  uint32
	Ins      ins.Ins
}

func (r *ParseFunctionResult) String() string {
	switch r.Kind {
	case ResultFound:
		return fmt.Sprintf("found function %s", r.Function.Name)
	case ResultIllegalIns:
		return fmt.Sprintf("illegal instruction at %#010x: %s", r.Address, r.Ins.String())
	case ResultNoEpilogue:
		return "no epilogue found"
	case ResultInvalidStart:
		return fmt.Sprintf("invalid function start at %#010x: %s", r.Address, r.Ins.String())
	}
	return fmt.Sprintf("parse result %d", int(r.Kind))
}

// ModeHint selects the execution mode for a candidate function.
type ModeHint uint8

const (
	// ModeAuto detects the mode from the start address and first bytes.
	ModeAuto ModeHint = iota
	ModeForceArm
	ModeForceThumb
)

// ParseFunctionOptions configures ParseFunction.
type ParseFunctionOptions struct {
	Name         string
	StartAddress uint32
	// BaseAddress is the address of ModuleCode[0].
	BaseAddress uint32
	ModuleCode  []byte
	// KnownEndAddress overrides end detection when non-zero.
	KnownEndAddress    uint32
	ModuleStartAddress uint32
	ModuleEndAddress   uint32
	// ExistingFunctions lets branches into already-known functions be
	// treated as tail calls instead of labels.
	ExistingFunctions map[uint32]*Function
	Mode              ModeHint
}

// ParseFunction walks the instruction stream from StartAddress until it finds
// the function's final return, an illegal instruction, or the end of the
// module.
func ParseFunction(options ParseFunctionOptions) ParseFunctionResult {
	thumb := IsThumbFunction(options.StartAddress, options.ModuleCode[options.StartAddress-options.BaseAddress:])
	switch options.Mode {
	case ModeForceArm:
		thumb = false
	case ModeForceThumb:
		thumb = true
	}

	mode := ins.ModeArm
	if thumb {
		mode = ins.ModeThumb
	}
	parser := disasm.NewParser(mode, options.StartAddress, options.ModuleCode[options.StartAddress-options.BaseAddress:])
	return functionParserLoop(parser, thumb, options)
}

func functionParserLoop(parser *disasm.Parser, thumb bool, options ParseFunctionOptions) ParseFunctionResult {
	ctx := newParseContext(thumb, options)

	first, ok := parser.Next()
	if !ok {
		return ParseFunctionResult{Kind: ResultNoEpilogue}
	}
	if !IsValidFunctionStart(&first) {
		return ParseFunctionResult{Kind: ResultInvalidStart, Address: first.Address, Ins: first}
	}

	state := ctx.handleIns(parser, &first)
	for state == parseContinue {
		i, ok := parser.Next()
		if !ok {
			state = parseDone
			break
		}
		state = ctx.handleIns(parser, &i)
	}

	result := ctx.intoFunction(state)
	if result.Kind != ResultFound {
		return result
	}

	function := result.Function
	if firstPool, ok := function.PoolConstants.Min(); ok && firstPool < function.StartAddress {
		log.Infof("function at %#010x adjusted to include pre-code constant pool at %#010x",
			function.StartAddress, firstPool)
		function.FirstInstructionAddress = function.StartAddress
		function.StartAddress = firstPool
	}
	return result
}

type parseState uint8

const (
	parseContinue parseState = iota
	parseIllegal
	parseDone
)

type parseContext struct {
	name         string
	startAddress uint32
	thumb        bool

	endAddress      uint32
	ended           bool
	knownEndAddress uint32

	labels        AddrSet
	poolConstants AddrSet
	jumpTables    map[uint32]JumpTable
	inlineTables  map[uint32]InlineTable
	functionCalls map[uint32]CalledFunction

	moduleCode         []byte
	baseAddress        uint32
	moduleStartAddress uint32
	moduleEndAddress   uint32
	existingFunctions  map[uint32]*Function

	// Highest address any conditional control flow can reach; a return
	// before this point is not the function's end.
	lastConditionalDest uint32
	lastPoolAddress     uint32

	jumpTableArm   JumpTableStateArm
	jumpTableThumb JumpTableStateThumb
	functionBranch FuncBranchState
	inlineTable    InlineTableState
	illegalCode    IllegalCodeState

	illegalAddress uint32
	illegalIns     ins.Ins

	prevIns     ins.Ins
	prevAddress uint32
	hasPrev     bool
}

func newParseContext(thumb bool, options ParseFunctionOptions) *parseContext {
	return &parseContext{
		name:               options.Name,
		startAddress:       options.StartAddress,
		thumb:              thumb,
		knownEndAddress:    options.KnownEndAddress,
		jumpTables:         make(map[uint32]JumpTable),
		inlineTables:       make(map[uint32]InlineTable),
		functionCalls:      make(map[uint32]CalledFunction),
		moduleCode:         options.ModuleCode,
		baseAddress:        options.BaseAddress,
		moduleStartAddress: options.ModuleStartAddress,
		moduleEndAddress:   options.ModuleEndAddress,
		existingFunctions:  options.ExistingFunctions,
		functionBranch:     FuncBranchStart,
	}
}

func (c *parseContext) handleIns(parser *disasm.Parser, i *ins.Ins) parseState {
	state := c.handleInsInner(parser, i)
	c.prevIns = *i
	c.prevAddress = i.Address
	c.hasPrev = true
	return state
}

func (c *parseContext) handleInsInner(parser *disasm.Parser, i *ins.Ins) parseState {
	address := i.Address

	if c.poolConstants.Contains(address) {
		parser.SeekForward(address + 4)
		return parseContinue
	}
	if table, ok := inlineTableAt(c.inlineTables, address); ok {
		parser.SeekForward(table.Address + table.Size)
		return parseContinue
	}

	if c.thumb {
		c.jumpTableThumb = c.jumpTableThumb.Handle(address, i, c.jumpTables)
		if end, ok := c.jumpTableThumb.TableEnd(); ok && end > c.lastConditionalDest {
			c.lastConditionalDest = end
		}
		if label, ok := c.jumpTableThumb.Label(address, c.halfwordAt(address)); ok {
			c.labels.Insert(label)
			if label > c.lastConditionalDest {
				c.lastConditionalDest = label
			}
		}
		if c.jumpTableThumb.InTable() {
			// Jump offset data, not an instruction
			return parseContinue
		}
	} else {
		c.jumpTableArm = c.jumpTableArm.Handle(address, i, c.jumpTables)
		if end, ok := c.jumpTableArm.TableEnd(); ok && end > c.lastConditionalDest {
			c.lastConditionalDest = end
		}
	}

	c.illegalCode = c.illegalCode.Handle(i)
	if c.illegalCode.IsIllegal() {
		c.illegalAddress = address
		c.illegalIns = *i
		return parseIllegal
	}

	insSize := i.Size
	inConditionalBlock := address < c.lastConditionalDest
	isReturn := c.isReturn(i)
	if !inConditionalBlock && isReturn {
		endAddress := address + insSize
		if destination, ok := isBranch(i); ok {
			if destination < c.startAddress || destination >= endAddress {
				// Tail call
				c.functionCalls[address] = CalledFunction{Ins: *i, Address: destination, Thumb: c.thumb}
			}
		}
		c.endAddress = endAddress
		c.ended = true
		return parseDone
	}

	if address > c.startAddress && isEntryInstruction(i) && c.hasPrev {
		if _, ok := isBranch(&c.prevIns); ok {
			if inConditionalBlock || c.prevIns.IsConditional() {
				// The previous branch was a tail call and this is the
				// next function's prologue
				c.endAddress = address
				c.ended = true
				return parseDone
			}
		}
	}

	c.functionBranch = c.functionBranch.Handle(i)
	if destination, ok := isBranch(i); ok {
		inCurrentModule := destination >= c.moduleStartAddress && destination < c.moduleEndAddress
		_, existing := c.existingFunctions[destination]
		switch {
		case !inCurrentModule:
			// Tail call
			c.functionCalls[address] = CalledFunction{Ins: *i, Address: destination, Thumb: c.thumb}
		case c.functionBranch.IsFunctionBranch() || existing:
			if !i.IsConditional() && !inConditionalBlock {
				// Unconditional branch to another function ends this one
				c.endAddress = address + insSize
				c.ended = true
				return parseDone
			}
			c.functionCalls[address] = CalledFunction{Ins: *i, Address: destination, Thumb: c.thumb}
		default:
			if state, ok := c.handleLabel(destination, address, parser, insSize); ok {
				return state
			}
		}
	}

	if poolAddress, ok := isPoolLoad(i, c.thumb); ok {
		c.poolConstants.Insert(poolAddress)
		if poolAddress > c.lastPoolAddress {
			c.lastPoolAddress = poolAddress
		}
	}

	c.inlineTable = c.inlineTable.Handle(i)
	if table, ok := c.inlineTable.Table(); ok {
		log.Debugf("inline table found at %#x, size %#x", table.Address, table.Size)
		c.inlineTables[table.Address] = table
	}

	if called, ok := isFunctionCall(i, c.thumb); ok {
		c.functionCalls[address] = called
	}

	return parseContinue
}

// handleLabel records a branch label and, when the next address starts a
// mid-function constant pool, skips the parser past the pool.
func (c *parseContext) handleLabel(destination, address uint32, parser *disasm.Parser, insSize uint32) (parseState, bool) {
	c.labels.Insert(destination)
	if destination > c.lastConditionalDest {
		c.lastConditionalDest = destination
	}

	nextAddress := address + insSize
	if !c.poolConstants.Contains(nextAddress) {
		return parseContinue, false
	}

	// Load instructions reach at most 4kB, so long functions emit pool
	// constants in the middle, behind an unconditional branch.
	if afterPools, ok := c.labels.NextAfter(address); ok {
		if afterPools > address+0x1000 {
			log.Warnf("massive gap from constant pool at %#x to next label at %#x", nextAddress, afterPools)
		}
		parser.SeekForward(afterPools)
		return parseContinue, false
	}
	if destination > address {
		return parseContinue, false
	}

	// Backwards branch with no labels past the pool: the function ends in
	// an infinite loop and has no return instruction.
	c.endAddress = nextAddress
	c.ended = true
	return parseDone, true
}

func (c *parseContext) intoFunction(state parseState) ParseFunctionResult {
	switch state {
	case parseContinue:
		panic("analysis: function parse context finalized before parsing is done")
	case parseIllegal:
		return ParseFunctionResult{Kind: ResultIllegalIns, Address: c.illegalAddress, Ins: c.illegalIns}
	}
	if !c.ended {
		return ParseFunctionResult{Kind: ResultNoEpilogue}
	}

	endAddress := c.endAddress
	if c.lastPoolAddress != 0 && c.lastPoolAddress+4 > endAddress {
		endAddress = c.lastPoolAddress + 4
	}
	if c.knownEndAddress != 0 {
		endAddress = c.knownEndAddress
	}
	if endAddress > c.moduleEndAddress {
		return ParseFunctionResult{Kind: ResultNoEpilogue}
	}

	return ParseFunctionResult{Kind: ResultFound, Function: &Function{
		Name:                    c.name,
		StartAddress:            c.startAddress,
		EndAddress:              endAddress,
		FirstInstructionAddress: c.startAddress,
		Thumb:                   c.thumb,
		Labels:                  c.labels,
		PoolConstants:           c.poolConstants,
		JumpTables:              c.jumpTables,
		InlineTables:            c.inlineTables,
		FunctionCalls:           c.functionCalls,
	}}
}

// isReturn matches the unconditional instructions that can end a function:
// indirect branches, PC writes, pops into PC, and backwards branches that
// leave the function or the module.
func (c *parseContext) isReturn(i *ins.Ins) bool {
	if i.IsConditional() {
		return false
	}
	args := &i.Args
	switch i.Mnemonic {
	case "bx":
		return true
	case "mov":
		return args[0].IsReg(ins.Pc)
	case "ldmia":
		return args[1].Kind == ins.KindRegList && args[1].Regs.Contains(ins.Pc)
	case "pop":
		return args[0].Kind == ins.KindRegList && args[0].Regs.Contains(ins.Pc)
	case "b":
		destination, ok := isBranch(i)
		if !ok || destination >= i.Address {
			return false
		}
		// A backwards branch only returns when it stays inside the
		// function (infinite loop) or leaves the module (tail call)
		return destination >= c.startAddress ||
			destination < c.moduleStartAddress ||
			destination >= c.moduleEndAddress
	case "subs":
		return args[0].IsReg(ins.Pc) && args[1].IsReg(ins.Lr)
	case "ldr":
		return args[0].IsReg(ins.Pc)
	}
	return false
}

func (c *parseContext) halfwordAt(address uint32) uint16 {
	off := address - c.baseAddress
	if int(off)+2 > len(c.moduleCode) {
		return 0
	}
	return binary.LittleEndian.Uint16(c.moduleCode[off:])
}

// FindFunctionsOptions configures FindFunctions.
type FindFunctionsOptions struct {
	// NamePrefix is prepended to the hex start address to name each
	// discovered function.
	NamePrefix  string
	BaseAddress uint32
	ModuleCode  []byte

	ModuleStartAddress uint32
	ModuleEndAddress   uint32

	// StartAddress and EndAddress bound the search; zero means the whole
	// module.
	StartAddress uint32
	EndAddress   uint32
	// LastFunctionAddress is the last address a function may start from.
	LastFunctionAddress uint32
	// MaxStartSearchDistance is how many bytes past the last valid
	// function to keep searching when a candidate start is rejected.
	MaxStartSearchDistance uint32
	// UseDataAsUpperBound limits the search using pool constants that
	// point at non-code addresses in this module.
	UseDataAsUpperBound bool
	// FunctionAddresses, when set, are known function starts that resume
	// the search after an illegal instruction.
	FunctionAddresses *AddrSet
	ExistingFunctions map[uint32]*Function
}

// FindFunctions sweeps a module's code from start to end, parsing one
// function after another. Candidates that fail validation advance the search
// by one instruction until MaxStartSearchDistance is exhausted.
func FindFunctions(options FindFunctionsOptions) map[uint32]*Function {
	functions := make(map[uint32]*Function)

	startAddress := options.StartAddress
	if startAddress == 0 {
		startAddress = options.BaseAddress
	}
	if startAddress&1 != 0 {
		panic(fmt.Sprintf("analysis: misaligned search start %#x", startAddress))
	}
	endAddress := options.EndAddress
	if endAddress == 0 {
		endAddress = options.BaseAddress + uint32(len(options.ModuleCode))
	}
	moduleCode := options.ModuleCode[:endAddress-options.BaseAddress]

	log.Debugf("searching for functions from %#010x to %#010x", startAddress, endAddress)

	lastFunctionAddress := options.LastFunctionAddress
	if lastFunctionAddress == 0 {
		lastFunctionAddress = endAddress
	}
	var upperBounds AddrSet

	prevValidAddress := startAddress
	address := startAddress

	for {
		offset := address - options.BaseAddress
		if int64(offset) >= int64(len(moduleCode)) {
			break
		}
		functionCode := moduleCode[offset:]
		limit := lastFunctionAddress
		if bound, ok := upperBounds.Min(); ok {
			limit = bound
		}
		if address > limit {
			break
		}

		thumb := IsThumbFunction(address, functionCode)
		mode := ins.ModeArm
		insSize := uint32(4)
		if thumb {
			mode = ins.ModeThumb
			insSize = 2
		}

		parser := disasm.NewParser(mode, address, functionCode)
		result := functionParserLoop(parser, thumb, ParseFunctionOptions{
			Name:               fmt.Sprintf("%s%08x", options.NamePrefix, address),
			StartAddress:       address,
			BaseAddress:        options.BaseAddress,
			ModuleCode:         moduleCode,
			ModuleStartAddress: options.ModuleStartAddress,
			ModuleEndAddress:   options.ModuleEndAddress,
			ExistingFunctions:  options.ExistingFunctions,
		})

		switch result.Kind {
		case ResultIllegalIns:
			if address < saturatingAdd(prevValidAddress, options.MaxStartSearchDistance) {
				// Possibly a constant pool ahead of the function's code
				nextAddress := (address + 4) &^ 3
				if options.FunctionAddresses != nil {
					if next, ok := options.FunctionAddresses.NextAfter(address); ok {
						nextAddress = next
					}
				}
				address = nextAddress
				continue
			}
			log.Debugf("terminating function search at illegal instruction %#010x: %s", result.Address, result.Ins.String())
			return functions
		case ResultNoEpilogue:
			log.Debugf("terminating function search, no epilogue in function starting from %#010x", address)
			return functions
		case ResultInvalidStart:
			if address < saturatingAdd(prevValidAddress, options.MaxStartSearchDistance) {
				address += insSize
				continue
			}
			log.Debugf("terminating function search at invalid function start %#010x: %s", result.Address, result.Ins.String())
			return functions
		}

		function := result.Function

		// Align up in case a Thumb function ends on a 2-byte boundary
		address = (function.EndAddress + 3) &^ 3
		prevValidAddress = function.EndAddress

		for _, invalid := range upperBounds.DeleteMax(function.EndAddress) {
			log.Debugf("invalidating upper bound %#010x inside function %#010x", invalid, function.StartAddress)
		}

		if options.UseDataAsUpperBound {
			findDataUpperBounds(function, moduleCode, options.BaseAddress, address, &upperBounds)
		}

		functions[function.FirstInstructionAddress] = function
	}
	return functions
}

// findDataUpperBounds scans a function's pool constants for pointers to data
// later in the module. Code never follows data in these modules, so such a
// pointer bounds the function search.
func findDataUpperBounds(function *Function, moduleCode []byte, baseAddress, searchAddress uint32, upperBounds *AddrSet) {
	for _, poolConstant := range function.IterPoolConstants(moduleCode, baseAddress) {
		pointerValue := poolConstant.Value &^ 1
		if upperBounds.Contains(pointerValue) || pointerValue < searchAddress {
			continue
		}
		offset := pointerValue - baseAddress
		if int64(offset) >= int64(len(moduleCode)) {
			continue
		}

		code := moduleCode[offset:]
		mode := ins.ModeArm
		if IsThumbFunction(pointerValue, code) {
			mode = ins.ModeThumb
		}
		first := disasm.Decode(code, pointerValue, mode)
		if IsValidFunctionStart(&first) {
			continue
		}

		upperBounds.Insert(pointerValue)
		log.Debugf("upper bound found: data at %#010x from pool constant at %#010x in function %s",
			poolConstant.Value, poolConstant.Address, function.Name)
	}
}

func saturatingAdd(a, b uint32) uint32 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint32(0)
}

