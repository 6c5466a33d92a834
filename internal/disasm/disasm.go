// Package disasm decodes ARM9/ARM7 machine code into the semantic instruction
// model used by the analysis engine. ARM-mode decoding is built on
// golang.org/x/arch/arm/armasm; Thumb mode has its own ARMv4T/v5TE decoder
// since x/arch does not provide one.
package disasm

import (
	"fmt"
	"strings"

	"dsdelink/internal/ins"
)

// Decode decodes one instruction at the given address. It is total: bytes that
// do not form a valid instruction yield an Ins with IsIllegal set, never an
// error. code must start at address.
func Decode(code []byte, address uint32, mode ins.Mode) ins.Ins {
	if mode == ins.ModeThumb {
		return decodeThumb(code, address)
	}
	return decodeArm(code, address)
}

// illegalIns is the decoding of bytes that form no valid instruction.
func illegalIns(address uint32, mode ins.Mode, size uint32) ins.Ins {
	return ins.Ins{
		Mnemonic:  "<illegal>",
		Address:   address,
		Mode:      mode,
		Size:      size,
		IsIllegal: true,
	}
}

// A Parser steps through a code region in address order, decoding one
// instruction per call. The classifiers require strictly ascending addresses;
// SeekForward is the only way to skip bytes (pool constants, inline tables).
type Parser struct {
	mode ins.Mode
	base uint32 // address of code[0]
	addr uint32 // next instruction address
	code []byte
}

// NewParser returns a parser over code, where code[0] is at address start.
func NewParser(mode ins.Mode, start uint32, code []byte) *Parser {
	return &Parser{mode: mode, base: start, addr: start, code: code}
}

// Mode returns the parser's execution mode.
func (p *Parser) Mode() ins.Mode { return p.mode }

// Addr returns the address of the next instruction to decode.
func (p *Parser) Addr() uint32 { return p.addr }

// Next decodes the instruction at the current address and advances past it.
// Returns false when the region is exhausted.
func (p *Parser) Next() (ins.Ins, bool) {
	off := p.addr - p.base
	if off >= uint32(len(p.code)) || uint32(len(p.code))-off < p.mode.InstructionSize() {
		return ins.Ins{}, false
	}
	i := Decode(p.code[off:], p.addr, p.mode)
	p.addr += i.Size
	return i, true
}

// SeekForward moves the parser to addr. Seeking backward is a bug in the
// caller and panics.
func (p *Parser) SeekForward(addr uint32) {
	if addr < p.addr {
		panic(fmt.Sprintf("disasm: seek backward from %#x to %#x", p.addr, addr))
	}
	p.addr = addr
}

// Format renders instructions as stable text output, one per line:
// <addr>  <mode>  <disasm>
func Format(insts []ins.Ins) string {
	var b strings.Builder
	for n := range insts {
		i := &insts[n]
		fmt.Fprintf(&b, "0x%08x  %-5s  %s\n", i.Address, i.Mode, i.String())
	}
	return b.String()
}
