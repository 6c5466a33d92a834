package analysis

import (
	"testing"

	"dsdelink/internal/ins"
)

func TestIllegalDecoderVerdictPassesThrough(t *testing.T) {
	var s IllegalCodeState
	bad := ins.Ins{Mnemonic: "<illegal>", IsIllegal: true}
	s = s.Handle(&bad)
	if !s.IsIllegal() {
		t.Error("decoder illegal verdict must pass through")
	}
}

func TestIllegalShiftedStoreBase(t *testing.T) {
	tests := []struct {
		name string
		seq  []ins.Ins
		want bool
	}{
		{
			name: "shift then stmia on same register",
			seq: []ins.Ins{
				testIns("lsl", ins.Reg(ins.R3), ins.Reg(ins.R3), ins.UImm(2)),
				testIns("stmia", ins.Reg(ins.R3), ins.RegListOp(ins.R4, ins.R5)),
			},
			want: true,
		},
		{
			name: "shift then unrelated load",
			seq: []ins.Ins{
				testIns("lsl", ins.Reg(ins.R3), ins.Reg(ins.R3), ins.UImm(2)),
				testIns("ldr", ins.Reg(ins.R3), ins.DerefReg(ins.R3), ins.OffsetImm(0)),
			},
			want: false,
		},
		{
			name: "shift then stmia on different register",
			seq: []ins.Ins{
				testIns("lsls", ins.Reg(ins.R3), ins.Reg(ins.R3), ins.UImm(2)),
				testIns("stmia", ins.Reg(ins.R4), ins.RegListOp(ins.R5)),
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s IllegalCodeState
			for idx := range tt.seq {
				s = s.Handle(&tt.seq[idx])
			}
			if got := s.IsIllegal(); got != tt.want {
				t.Errorf("IsIllegal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIllegalStoreSelfOffset(t *testing.T) {
	var s IllegalCodeState
	i := testIns("str", ins.Reg(ins.R0), ins.DerefReg(ins.R1), ins.OffsetReg(ins.R1))
	s = s.Handle(&i)
	if !s.IsIllegal() {
		t.Error("str with the base register as its own offset must be illegal")
	}
}

func TestIllegalNotSticky(t *testing.T) {
	var s IllegalCodeState
	bad := ins.Ins{Mnemonic: "<illegal>", IsIllegal: true}
	good := testIns("mov", ins.Reg(ins.R0), ins.Reg(ins.R1))
	s = s.Handle(&bad)
	s = s.Handle(&good)
	if s.IsIllegal() {
		t.Error("verdict must be recomputed on every step")
	}
}
