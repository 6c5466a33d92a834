package disasm

import (
	"strings"
	"testing"

	"dsdelink/internal/ins"
)

func TestDecodeArm(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		mnemonic string
		cond     ins.Cond
		flags    bool
	}{
		{"ldr literal", []byte{0x00, 0x00, 0x9f, 0xe5}, "ldr", ins.CondAl, false},
		{"bx lr", []byte{0x1e, 0xff, 0x2f, 0xe1}, "bx", ins.CondAl, false},
		{"mov conditional", []byte{0x01, 0x00, 0xa0, 0xc3}, "movgt", ins.CondGt, false},
		{"subs", []byte{0x01, 0x10, 0x50, 0xe2}, "subs", ins.CondAl, true},
		{"cmp sets flags", []byte{0x00, 0x00, 0x50, 0xe3}, "cmp", ins.CondAl, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := Decode(tt.code, 0x02000000, ins.ModeArm)
			if i.IsIllegal {
				t.Fatal("decoded as illegal")
			}
			if i.Mnemonic != tt.mnemonic {
				t.Errorf("mnemonic = %q, want %q", i.Mnemonic, tt.mnemonic)
			}
			if i.Cond != tt.cond {
				t.Errorf("cond = %v, want %v", i.Cond, tt.cond)
			}
			if i.UpdatesFlags != tt.flags {
				t.Errorf("UpdatesFlags = %v, want %v", i.UpdatesFlags, tt.flags)
			}
			if i.Size != 4 {
				t.Errorf("size = %d, want 4", i.Size)
			}
		})
	}
}

func TestDecodeArmLiteralLoad(t *testing.T) {
	// ldr r0, [pc, #0]
	i := Decode([]byte{0x00, 0x00, 0x9f, 0xe5}, 0x02000000, ins.ModeArm)
	if !i.Args[0].IsReg(ins.R0) {
		t.Errorf("args[0] = %v, want r0", i.Args[0])
	}
	if !i.Args[1].IsDerefReg(ins.Pc) {
		t.Errorf("args[1] = %v, want [pc]", i.Args[1])
	}
	if i.Args[2].Kind != ins.KindOffsetImm || i.Args[2].SImm != 0 {
		t.Errorf("args[2] = %v, want #0", i.Args[2])
	}
}

func TestDecodeArmBranch(t *testing.T) {
	// b with a zero offset lands two instructions ahead of the branch.
	i := Decode([]byte{0x00, 0x00, 0x00, 0xea}, 0x02000000, ins.ModeArm)
	if i.Mnemonic != "b" {
		t.Fatalf("mnemonic = %q, want b", i.Mnemonic)
	}
	dest, ok := i.BranchDest()
	if !ok || dest != 0x02000008 {
		t.Errorf("BranchDest() = %#x, %v, want 0x02000008", dest, ok)
	}
}

func TestDecodeArmIllegal(t *testing.T) {
	i := Decode([]byte{0xff, 0xff, 0xff, 0xff}, 0x02000000, ins.ModeArm)
	if !i.IsIllegal {
		t.Error("0xffffffff should decode as illegal")
	}
	if i.Size != 4 {
		t.Errorf("size = %d, want 4", i.Size)
	}
}

func TestDecodeThumb(t *testing.T) {
	tests := []struct {
		name     string
		code     []byte
		mnemonic string
		flags    bool
	}{
		{"push", []byte{0x10, 0xb5}, "push", false},
		{"cmp imm", []byte{0x00, 0x28}, "cmp", true},
		{"shift imm", []byte{0x11, 0x00}, "lsls", true},
		{"hi-reg mov", []byte{0x08, 0x46}, "mov", false},
		{"bx", []byte{0x70, 0x47}, "bx", false},
		{"swi", []byte{0x09, 0xdf}, "swi", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := Decode(tt.code, 0x02000000, ins.ModeThumb)
			if i.IsIllegal {
				t.Fatal("decoded as illegal")
			}
			if i.Mnemonic != tt.mnemonic {
				t.Errorf("mnemonic = %q, want %q", i.Mnemonic, tt.mnemonic)
			}
			if i.UpdatesFlags != tt.flags {
				t.Errorf("UpdatesFlags = %v, want %v", i.UpdatesFlags, tt.flags)
			}
			if i.Size != 2 {
				t.Errorf("size = %d, want 2", i.Size)
			}
		})
	}
}

func TestDecodeThumbBranches(t *testing.T) {
	t.Run("conditional forward", func(t *testing.T) {
		// beq skipping two instructions
		i := Decode([]byte{0x02, 0xd0}, 0x02000004, ins.ModeThumb)
		if i.Mnemonic != "beq" || i.Cond != ins.CondEq {
			t.Fatalf("decoded %q cond %v", i.Mnemonic, i.Cond)
		}
		dest, ok := i.BranchDest()
		if !ok || dest != 0x0200000c {
			t.Errorf("BranchDest() = %#x, %v, want 0x0200000c", dest, ok)
		}
	})

	t.Run("unconditional to self", func(t *testing.T) {
		i := Decode([]byte{0xfe, 0xe7}, 0x02000000, ins.ModeThumb)
		if i.Mnemonic != "b" {
			t.Fatalf("mnemonic = %q, want b", i.Mnemonic)
		}
		dest, ok := i.BranchDest()
		if !ok || dest != 0x02000000 {
			t.Errorf("BranchDest() = %#x, %v, want 0x02000000", dest, ok)
		}
	})

	t.Run("bl pair combines", func(t *testing.T) {
		i := Decode([]byte{0x00, 0xf0, 0x03, 0xf8}, 0x02000006, ins.ModeThumb)
		if i.Mnemonic != "bl" {
			t.Fatalf("mnemonic = %q, want bl", i.Mnemonic)
		}
		if i.Size != 4 {
			t.Errorf("size = %d, want 4", i.Size)
		}
		dest, ok := i.BranchDest()
		if !ok || dest != 0x02000010 {
			t.Errorf("BranchDest() = %#x, %v, want 0x02000010", dest, ok)
		}
	})

	t.Run("stray bl suffix is illegal", func(t *testing.T) {
		i := Decode([]byte{0x03, 0xf8}, 0x02000000, ins.ModeThumb)
		if !i.IsIllegal {
			t.Error("bl suffix without prefix should be illegal")
		}
	})

	t.Run("undefined is illegal", func(t *testing.T) {
		i := Decode([]byte{0x00, 0xde}, 0x02000000, ins.ModeThumb)
		if !i.IsIllegal {
			t.Error("0xde00 should be illegal")
		}
	})
}

func TestDecodeThumbLiteralLoad(t *testing.T) {
	// ldr r1, [pc, #4]
	i := Decode([]byte{0x01, 0x49}, 0x02000000, ins.ModeThumb)
	if i.Mnemonic != "ldr" {
		t.Fatalf("mnemonic = %q, want ldr", i.Mnemonic)
	}
	if !i.Args[0].IsReg(ins.R1) || !i.Args[1].IsDerefReg(ins.Pc) {
		t.Errorf("args = %v %v, want r1, [pc]", i.Args[0], i.Args[1])
	}
	if i.Args[2].Kind != ins.KindOffsetImm || i.Args[2].SImm != 4 {
		t.Errorf("args[2] = %v, want #4", i.Args[2])
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if i := Decode([]byte{0x10}, 0x02000000, ins.ModeThumb); !i.IsIllegal {
		t.Error("one byte in thumb mode should be illegal")
	}
	if i := Decode([]byte{0x10, 0xb5}, 0x02000000, ins.ModeArm); !i.IsIllegal {
		t.Error("two bytes in arm mode should be illegal")
	}
}

func TestParser(t *testing.T) {
	// push; bl; pop over six halfwords, bl consumes two of them.
	code := []byte{
		0x10, 0xb5,
		0x00, 0xf0, 0x03, 0xf8,
		0x10, 0xbd,
	}
	p := NewParser(ins.ModeThumb, 0x02000000, code)
	if p.Mode() != ins.ModeThumb {
		t.Errorf("Mode() = %v", p.Mode())
	}

	want := []struct {
		addr     uint32
		mnemonic string
	}{
		{0x02000000, "push"},
		{0x02000002, "bl"},
		{0x02000006, "pop"},
	}
	for _, w := range want {
		if p.Addr() != w.addr {
			t.Errorf("Addr() = %#x, want %#x", p.Addr(), w.addr)
		}
		i, ok := p.Next()
		if !ok {
			t.Fatalf("Next() exhausted at %#x", w.addr)
		}
		if i.Mnemonic != w.mnemonic {
			t.Errorf("at %#x: mnemonic = %q, want %q", w.addr, i.Mnemonic, w.mnemonic)
		}
	}
	if _, ok := p.Next(); ok {
		t.Error("Next() should report exhaustion")
	}
}

func TestParserSeekForward(t *testing.T) {
	code := []byte{
		0x00, 0x49, // ldr r1, [pc, #4]
		0xaa, 0xaa, // pool data, skipped
		0x70, 0x47, // bx lr
	}
	p := NewParser(ins.ModeThumb, 0x02000000, code)
	if _, ok := p.Next(); !ok {
		t.Fatal("Next() failed")
	}
	p.SeekForward(0x02000004)
	i, ok := p.Next()
	if !ok || i.Mnemonic != "bx" {
		t.Errorf("after seek: %q, %v, want bx", i.Mnemonic, ok)
	}
}

func TestFormat(t *testing.T) {
	insts := []ins.Ins{
		Decode([]byte{0x10, 0xb5}, 0x02000000, ins.ModeThumb),
		Decode([]byte{0x70, 0x47}, 0x02000002, ins.ModeThumb),
	}
	out := Format(insts)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0x02000000  thumb  push") {
		t.Errorf("line = %q", lines[0])
	}
}
