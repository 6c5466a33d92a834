package analysis

import (
	"testing"

	"dsdelink/internal/ins"
)

func testIns(mnemonic string, args ...ins.Operand) ins.Ins {
	return ins.New(mnemonic, args...)
}

func flagIns(mnemonic string, args ...ins.Operand) ins.Ins {
	i := ins.New(mnemonic, args...)
	i.UpdatesFlags = true
	return i
}

func stepAll(t *testing.T, s FuncBranchState, seq []ins.Ins) FuncBranchState {
	t.Helper()
	for idx := range seq {
		s = s.Handle(&seq[idx])
	}
	return s
}

func TestFuncBranchEorsBmi(t *testing.T) {
	tests := []struct {
		name string
		seq  []ins.Ins
		want bool
	}{
		{
			name: "eors then bmi",
			seq: []ins.Ins{
				flagIns("eors", ins.Reg(ins.R0), ins.Reg(ins.R1), ins.Reg(ins.R2)),
				testIns("bmi", ins.BranchTarget(0x02001000)),
			},
			want: true,
		},
		{
			name: "flag update resets before bmi",
			seq: []ins.Ins{
				flagIns("eors", ins.Reg(ins.R0), ins.Reg(ins.R1), ins.Reg(ins.R2)),
				flagIns("adds", ins.Reg(ins.R3), ins.Reg(ins.R3), ins.UImm(1)),
				testIns("bmi", ins.BranchTarget(0x02001000)),
			},
			want: false,
		},
		{
			name: "non-flag instruction keeps the window open",
			seq: []ins.Ins{
				flagIns("eors", ins.Reg(ins.R0), ins.Reg(ins.R1), ins.Reg(ins.R2)),
				testIns("mov", ins.Reg(ins.R4), ins.Reg(ins.R5)),
				testIns("bmi", ins.BranchTarget(0x02001000)),
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stepAll(t, FuncBranchStart, tt.seq)
			if got := s.IsFunctionBranch(); got != tt.want {
				t.Errorf("IsFunctionBranch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuncBranchMovPcLr(t *testing.T) {
	s := stepAll(t, FuncBranchStart, []ins.Ins{
		testIns("movge", ins.Reg(ins.Pc), ins.Reg(ins.Lr)),
		testIns("b", ins.BranchTarget(0x02002000)),
	})
	if !s.IsFunctionBranch() {
		t.Error("movge pc, lr then b should be a function branch")
	}

	s = stepAll(t, FuncBranchStart, []ins.Ins{
		testIns("movge", ins.Reg(ins.Pc), ins.Reg(ins.Lr)),
		testIns("mov", ins.Reg(ins.R0), ins.Reg(ins.R1)),
		testIns("b", ins.BranchTarget(0x02002000)),
	})
	if s.IsFunctionBranch() {
		t.Error("intervening instruction should reset the window")
	}
}

func TestFuncBranchMovFromSp(t *testing.T) {
	s := stepAll(t, FuncBranchStart, []ins.Ins{
		testIns("mov", ins.Reg(ins.R0), ins.Reg(ins.Sp)),
		testIns("b", ins.BranchTarget(0x02002000)),
	})
	if !s.IsFunctionBranch() {
		t.Error("mov Rd, sp then b should be a function branch")
	}
}

func TestFuncBranchLdrIpAdd(t *testing.T) {
	seq := []ins.Ins{
		testIns("ldr", ins.Reg(ins.R12), ins.DerefReg(ins.Pc), ins.OffsetImm(8)),
		testIns("add", ins.Reg(ins.R0), ins.Reg(ins.R0), ins.Reg(ins.R12)),
		testIns("b", ins.BranchTarget(0x02003000)),
	}
	if s := stepAll(t, FuncBranchStart, seq); !s.IsFunctionBranch() {
		t.Error("ldr r12, [pc, #imm] / add r0, r0, r12 / b should be a function branch")
	}

	// Wrong add shape breaks the chain.
	seq[1] = testIns("add", ins.Reg(ins.R1), ins.Reg(ins.R0), ins.Reg(ins.R12))
	if s := stepAll(t, FuncBranchStart, seq); s.IsFunctionBranch() {
		t.Error("add into a different register should not match")
	}
}

func TestFuncBranchOneShot(t *testing.T) {
	s := stepAll(t, FuncBranchStart, []ins.Ins{
		flagIns("eors", ins.Reg(ins.R0), ins.Reg(ins.R1), ins.Reg(ins.R2)),
		testIns("bmi", ins.BranchTarget(0x02001000)),
	})
	next := testIns("bmi", ins.BranchTarget(0x02001000))
	s = s.Handle(&next)
	if s.IsFunctionBranch() {
		t.Error("verdict must not persist past the instruction that produced it")
	}
}

func TestFuncBranchTotality(t *testing.T) {
	// Every state must accept every instruction.
	states := []FuncBranchState{
		FuncBranchStart,
		funcBranchEors,
		funcBranchMovgePcLr,
		funcBranchMovFromSp,
		funcBranchLdrIpPc,
		funcBranchAddR0Ip,
		funcBranchFound,
	}
	inputs := []ins.Ins{
		testIns("nop"),
		testIns("b", ins.BranchTarget(0x02000000)),
		flagIns("subs", ins.Reg(ins.R0), ins.Reg(ins.R0), ins.UImm(1)),
		{Mnemonic: "<illegal>", IsIllegal: true},
	}
	for _, s := range states {
		for idx := range inputs {
			next := s.Handle(&inputs[idx])
			if next > funcBranchFound {
				t.Fatalf("state %d stepped to undefined state %d", s, next)
			}
		}
	}
}
