package analysis

import (
	"testing"

	"dsdelink/internal/ins"
)

func TestJumpTableArmUnsigned(t *testing.T) {
	tables := make(map[uint32]JumpTable)
	var s JumpTableStateArm

	cmp := flagIns("cmp", ins.Reg(ins.R3), ins.UImm(5))
	cmp.Address = 0x02000000
	s = s.Handle(cmp.Address, &cmp, tables)

	dispatch := testIns("addls",
		ins.Reg(ins.Pc), ins.Reg(ins.Pc), ins.Reg(ins.R3), ins.ShiftImm(ins.ShiftLsl, 2))
	dispatch.Address = 0x02000004
	s = s.Handle(dispatch.Address, &dispatch, tables)

	table, ok := tables[0x0200000c]
	if !ok {
		t.Fatal("expected a table at 0x0200000c")
	}
	if table.Size != 24 {
		t.Errorf("size = %d, want 24 (six 4-byte branches)", table.Size)
	}
	if !table.Code {
		t.Error("ARM jump tables hold branch instructions")
	}
	if end, ok := s.TableEnd(); !ok || end != 0x02000024 {
		t.Errorf("TableEnd() = %#x, %v", end, ok)
	}
}

func TestJumpTableArmSigned(t *testing.T) {
	tables := make(map[uint32]JumpTable)
	var s JumpTableStateArm

	seq := []ins.Ins{
		flagIns("cmp", ins.Reg(ins.R2), ins.UImm(7)),
		testIns("bgt", ins.BranchTarget(0x02000040)),
		flagIns("cmp", ins.Reg(ins.R2), ins.UImm(0)),
		testIns("addge", ins.Reg(ins.Pc), ins.Reg(ins.Pc), ins.Reg(ins.R2), ins.ShiftImm(ins.ShiftLsl, 2)),
	}
	for idx := range seq {
		seq[idx].Address = 0x02000000 + uint32(idx)*4
		s = s.Handle(seq[idx].Address, &seq[idx], tables)
	}

	if _, ok := tables[0x02000014]; !ok {
		t.Fatalf("expected a table at 0x02000014, got %v", tables)
	}
}

func TestJumpTableArmFlagReset(t *testing.T) {
	tables := make(map[uint32]JumpTable)
	var s JumpTableStateArm

	seq := []ins.Ins{
		flagIns("cmp", ins.Reg(ins.R3), ins.UImm(5)),
		flagIns("subs", ins.Reg(ins.R3), ins.Reg(ins.R3), ins.UImm(1)),
		testIns("addls", ins.Reg(ins.Pc), ins.Reg(ins.Pc), ins.Reg(ins.R3), ins.ShiftImm(ins.ShiftLsl, 2)),
	}
	for idx := range seq {
		seq[idx].Address = 0x02000000 + uint32(idx)*4
		s = s.Handle(seq[idx].Address, &seq[idx], tables)
	}
	if len(tables) != 0 {
		t.Errorf("flag update between cmp and dispatch must reset: %v", tables)
	}
}

func thumbJumpTableSeq() []ins.Ins {
	return []ins.Ins{
		thumbIns(0x02000000, "cmp", ins.Reg(ins.R0), ins.UImm(3)),
		thumbIns(0x02000002, "bhi", ins.BranchTarget(0x02000020)),
		thumbIns(0x02000004, "adds", ins.Reg(ins.R1), ins.Reg(ins.R0), ins.Reg(ins.R0)),
		thumbIns(0x02000006, "add", ins.Reg(ins.R1), ins.Reg(ins.Pc)),
		thumbIns(0x02000008, "ldrh", ins.Reg(ins.R1), ins.DerefReg(ins.R1), ins.OffsetImm(12)),
		thumbIns(0x0200000a, "lsls", ins.Reg(ins.R1), ins.Reg(ins.R1), ins.UImm(0x10)),
		thumbIns(0x0200000c, "asrs", ins.Reg(ins.R1), ins.Reg(ins.R1), ins.UImm(0x10)),
		thumbIns(0x0200000e, "add", ins.Reg(ins.Pc), ins.Reg(ins.R1)),
	}
}

func TestJumpTableThumb(t *testing.T) {
	tables := make(map[uint32]JumpTable)
	var s JumpTableStateThumb

	for _, i := range thumbJumpTableSeq() {
		i := i
		s = s.Handle(i.Address, &i, tables)
	}

	table, ok := tables[0x02000010]
	if !ok {
		t.Fatalf("expected a table at 0x02000010, got %v", tables)
	}
	if table.Size != 8 {
		t.Errorf("size = %d, want 8 (four halfword offsets)", table.Size)
	}
	if table.Code {
		t.Error("Thumb jump tables hold data offsets, not instructions")
	}

	if !s.InTable() {
		t.Error("state should be inside the table")
	}
	if end, ok := s.TableEnd(); !ok || end != 0x02000018 {
		t.Errorf("TableEnd() = %#x, %v", end, ok)
	}

	// An entry holding 0x12 dispatches to table + 0x12 + 2.
	if label, ok := s.Label(0x02000010, 0x12); !ok || label != 0x02000024 {
		t.Errorf("Label() = %#x, %v", label, ok)
	}
	if _, ok := s.Label(0x02000018, 0x12); ok {
		t.Error("entry past the table must not resolve")
	}

	// Stepping past the table resets.
	after := thumbIns(0x02000018, "mov", ins.Reg(ins.R0), ins.Reg(ins.R1))
	s = s.Handle(after.Address, &after, tables)
	if s.InTable() {
		t.Error("state must reset past the table end")
	}
}

func TestJumpTableThumbSigned(t *testing.T) {
	tables := make(map[uint32]JumpTable)
	var s JumpTableStateThumb

	seq := []ins.Ins{
		thumbIns(0x02000000, "cmp", ins.Reg(ins.R0), ins.UImm(3)),
		thumbIns(0x02000002, "bgt", ins.BranchTarget(0x02000020)),
		thumbIns(0x02000004, "cmp", ins.Reg(ins.R0), ins.UImm(0)),
		thumbIns(0x02000006, "blt", ins.BranchTarget(0x02000020)),
		thumbIns(0x02000008, "adds", ins.Reg(ins.R1), ins.Reg(ins.R0), ins.Reg(ins.R0)),
		thumbIns(0x0200000a, "add", ins.Reg(ins.R1), ins.Reg(ins.Pc)),
		thumbIns(0x0200000c, "ldrh", ins.Reg(ins.R1), ins.DerefReg(ins.R1), ins.OffsetImm(12)),
		thumbIns(0x0200000e, "lsls", ins.Reg(ins.R1), ins.Reg(ins.R1), ins.UImm(0x10)),
		thumbIns(0x02000010, "asrs", ins.Reg(ins.R1), ins.Reg(ins.R1), ins.UImm(0x10)),
		thumbIns(0x02000012, "add", ins.Reg(ins.Pc), ins.Reg(ins.R1)),
	}
	for idx := range seq {
		s = s.Handle(seq[idx].Address, &seq[idx], tables)
	}

	if _, ok := tables[0x02000014]; !ok {
		t.Fatalf("expected a table at 0x02000014, got %v", tables)
	}
}
