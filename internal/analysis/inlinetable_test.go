package analysis

import (
	"testing"

	"dsdelink/internal/ins"
)

func thumbIns(address uint32, mnemonic string, args ...ins.Operand) ins.Ins {
	i := ins.New(mnemonic, args...)
	i.Address = address
	i.Mode = ins.ModeThumb
	i.Size = 2
	return i
}

func TestInlineTableNumeric(t *testing.T) {
	sub := thumbIns(0x2000, "sub", ins.Reg(ins.R1), ins.Reg(ins.Pc), ins.UImm(0x10))
	ldrb := thumbIns(0x2002, "ldrb",
		ins.Reg(ins.R2), ins.DerefReg(ins.R1), ins.OffsetReg(ins.R0), ins.ShiftImm(ins.ShiftLsr, 0))

	var s InlineTableState
	s = s.Handle(&sub)
	if _, ok := s.Table(); ok {
		t.Fatal("no table before the ldrb")
	}
	s = s.Handle(&ldrb)

	table, ok := s.Table()
	if !ok {
		t.Fatal("expected a table")
	}
	if table.Address != 0x20F4 {
		t.Errorf("address = %#x, want 0x20f4", table.Address)
	}
	if table.Size != 256 {
		t.Errorf("size = %d, want 256", table.Size)
	}
	if table.Kind != TableByte {
		t.Errorf("kind = %d, want TableByte", table.Kind)
	}
	if table.Count() != 256 {
		t.Errorf("count = %d, want 256", table.Count())
	}
}

func TestInlineTableArmPipeline(t *testing.T) {
	sub := ins.New("sub", ins.Reg(ins.R1), ins.Reg(ins.Pc), ins.UImm(0x10))
	sub.Address = 0x2000
	ldrb := ins.New("ldrb",
		ins.Reg(ins.R2), ins.DerefReg(ins.R1), ins.OffsetReg(ins.R0), ins.ShiftImm(ins.ShiftLsr, 2))

	var s InlineTableState
	s = s.Handle(&sub)
	s = s.Handle(&ldrb)

	table, ok := s.Table()
	if !ok {
		t.Fatal("expected a table")
	}
	if table.Address != 0x20F8 {
		t.Errorf("address = %#x, want 0x20f8 (8-byte ARM prefetch)", table.Address)
	}
}

func TestInlineTableOneShot(t *testing.T) {
	sub := thumbIns(0x2000, "sub", ins.Reg(ins.R1), ins.Reg(ins.Pc), ins.UImm(0x10))
	ldrb := thumbIns(0x2002, "ldrb",
		ins.Reg(ins.R2), ins.DerefReg(ins.R1), ins.OffsetReg(ins.R0), ins.ShiftImm(ins.ShiftLsr, 0))

	var s InlineTableState
	s = s.Handle(&sub)
	s = s.Handle(&ldrb)
	if _, ok := s.Table(); !ok {
		t.Fatal("expected a table")
	}

	// The very next step resets, even on a fresh sub/ldrb pair start.
	s = s.Handle(&sub)
	if _, ok := s.Table(); ok {
		t.Error("table must be consumed on the step it appears")
	}
	s = s.Handle(&ldrb)
	if _, ok := s.Table(); ok {
		t.Error("adjacent tables must not merge")
	}
}

func TestInlineTableWrongBase(t *testing.T) {
	sub := thumbIns(0x2000, "sub", ins.Reg(ins.R1), ins.Reg(ins.Pc), ins.UImm(0x10))
	ldrb := thumbIns(0x2002, "ldrb",
		ins.Reg(ins.R2), ins.DerefReg(ins.R3), ins.OffsetReg(ins.R0), ins.ShiftImm(ins.ShiftLsr, 0))

	var s InlineTableState
	s = s.Handle(&sub)
	s = s.Handle(&ldrb)
	if _, ok := s.Table(); ok {
		t.Error("ldrb through a different base must not match")
	}
}
