package ins

import "testing"

func TestCondString(t *testing.T) {
	tests := []struct {
		cond Cond
		want string
	}{
		{CondAl, ""},
		{CondEq, "eq"},
		{CondNe, "ne"},
		{CondGe, "ge"},
		{CondLe, "le"},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.want {
			t.Errorf("Cond(%d).String() = %q, want %q", tt.cond, got, tt.want)
		}
	}
}

func TestIsConditional(t *testing.T) {
	i := New("movge", Reg(Pc), Reg(Lr))
	i.Cond = CondGe
	if !i.IsConditional() {
		t.Error("movge should be conditional")
	}
	if u := New("mov", Reg(R0), Reg(R1)); u.IsConditional() {
		t.Error("mov should not be conditional")
	}
}

func TestBranchDest(t *testing.T) {
	b := New("b", BranchTarget(0x02001000))
	dest, ok := b.BranchDest()
	if !ok || dest != 0x02001000 {
		t.Errorf("BranchDest() = %#x, %v", dest, ok)
	}
	m := New("mov", Reg(R0), Reg(R1))
	if _, ok := m.BranchDest(); ok {
		t.Error("mov has no branch destination")
	}
}

func TestRegisterList(t *testing.T) {
	i := New("push", RegListOp(R4, R5, Lr))
	list := i.RegisterList()
	for _, r := range []Register{R4, R5, Lr} {
		if !list.Contains(r) {
			t.Errorf("list should contain %s", r)
		}
	}
	if list.Contains(Pc) {
		t.Error("list should not contain pc")
	}
	regs := list.Registers()
	if len(regs) != 3 || regs[0] != R4 || regs[2] != Lr {
		t.Errorf("Registers() = %v", regs)
	}
}

func TestOperandHelpers(t *testing.T) {
	if !(Operand{}).IsNone() {
		t.Error("zero operand should be none")
	}
	if !Reg(R3).IsReg(R3) || Reg(R3).IsReg(R4) {
		t.Error("IsReg mismatch")
	}
	if !DerefReg(Pc).IsDerefReg(Pc) || Reg(Pc).IsDerefReg(Pc) {
		t.Error("IsDerefReg mismatch")
	}
}

func TestInsString(t *testing.T) {
	i := New("ldr", Reg(R1), DerefReg(Pc), OffsetImm(4))
	if got := i.String(); got != "ldr r1, [pc], #+4" {
		t.Errorf("String() = %q", got)
	}
	bx := New("bx", Reg(Lr))
	if got := bx.String(); got != "bx lr" {
		t.Errorf("String() = %q", got)
	}
}
