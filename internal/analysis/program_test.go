package analysis

import (
	"context"
	"testing"

	"dsdelink/internal/reloc"
)

func TestAnalyzeFunctions(t *testing.T) {
	m := &Module{
		Name:         "main",
		Kind:         reloc.Arm9Kind(),
		Code:         thumbModule(),
		BaseAddress:  0x02000000,
		EntryAddress: 0x02000000,
	}
	p := &Program{Modules: []*Module{m}}
	if err := p.AnalyzeFunctions(context.Background(), SearchOptions{MaxStartSearchDistance: 0x100}); err != nil {
		t.Fatal(err)
	}
	if len(m.Functions) != 2 {
		t.Fatalf("found %d functions, want 2", len(m.Functions))
	}
	for _, addr := range []uint32{0x02000000, 0x02000010} {
		if m.Functions[addr] == nil {
			t.Errorf("no function at %#x", addr)
		}
	}
}

func TestMainModule(t *testing.T) {
	main := &Module{Name: "main", EntryAddress: 0x02000800}
	overlay := &Module{Name: "ov0"}
	p := &Program{Modules: []*Module{overlay, main}}
	if got := p.MainModule(); got != main {
		t.Errorf("MainModule() = %v", got)
	}
	if got := (&Program{Modules: []*Module{overlay}}).MainModule(); got != nil {
		t.Errorf("MainModule() = %v, want nil", got)
	}
}

func TestModulesContaining(t *testing.T) {
	p := &Program{Modules: []*Module{
		{Name: "main", Kind: reloc.Arm9Kind(), BaseAddress: 0x02000000, Code: make([]byte, 0x1000)},
		{Name: "ov3", Kind: reloc.OverlayKind(3), BaseAddress: 0x02300000, Code: make([]byte, 0x100)},
		{Name: "ov7", Kind: reloc.OverlayKind(7), BaseAddress: 0x02300000, Code: make([]byte, 0x200)},
	}}

	kinds := p.ModulesContaining(0x02300040)
	if len(kinds) != 2 || kinds[0] != reloc.OverlayKind(3) || kinds[1] != reloc.OverlayKind(7) {
		t.Errorf("ModulesContaining = %v", kinds)
	}
	if kinds := p.ModulesContaining(0x02000800); len(kinds) != 1 || kinds[0] != reloc.Arm9Kind() {
		t.Errorf("ModulesContaining = %v", kinds)
	}
	if kinds := p.ModulesContaining(0x0a000000); kinds != nil {
		t.Errorf("ModulesContaining = %v, want none", kinds)
	}
}

func TestProgramRelocations(t *testing.T) {
	main := &Module{
		Name:        "main",
		Kind:        reloc.Arm9Kind(),
		BaseAddress: 0x02000000,
		Code:        make([]byte, 0x1000),
		Functions: map[uint32]*Function{
			0x02000000: {
				Name:  "func_02000000",
				Thumb: true,
				FunctionCalls: map[uint32]CalledFunction{
					// In-module call, needs no relocation.
					0x02000004: {Address: 0x02000800, Thumb: true},
					// Cross-module call into the overlays.
					0x02000008: {Address: 0x02300010, Thumb: false},
				},
			},
		},
	}
	ov3 := &Module{Name: "ov3", Kind: reloc.OverlayKind(3), BaseAddress: 0x02300000, Code: make([]byte, 0x100)}
	ov7 := &Module{Name: "ov7", Kind: reloc.OverlayKind(7), BaseAddress: 0x02300000, Code: make([]byte, 0x100)}
	p := &Program{Modules: []*Module{main, ov3, ov7}}

	rs, err := p.Relocations(main)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rs.Len())
	}
	r, ok := rs.Get(0x02000008)
	if !ok {
		t.Fatal("missing relocation for the cross-module call")
	}
	if r.Kind != reloc.ThumbCallArm {
		t.Errorf("kind = %s, want thumb_call_arm", r.Kind)
	}
	if !r.Module.Equal(reloc.OverlaysModule([]uint16{3, 7})) {
		t.Errorf("module = %s, want overlays(3,7)", r.Module)
	}
}

func TestProgramRelocationsAmbiguous(t *testing.T) {
	// A non-overlay module overlapping an overlay cannot be classified.
	main := &Module{
		Name:        "main",
		Kind:        reloc.Arm9Kind(),
		BaseAddress: 0x02000000,
		Code:        make([]byte, 0x1000),
		Functions: map[uint32]*Function{
			0x02000000: {
				Name:  "func_02000000",
				Thumb: true,
				FunctionCalls: map[uint32]CalledFunction{
					0x02000004: {Address: 0x01ff8000, Thumb: true},
				},
			},
		},
	}
	itcm := &Module{Name: "itcm", Kind: reloc.ItcmKind(), BaseAddress: 0x01ff8000, Code: make([]byte, 0x100)}
	ov := &Module{Name: "ov0", Kind: reloc.OverlayKind(0), BaseAddress: 0x01ff8000, Code: make([]byte, 0x100)}
	p := &Program{Modules: []*Module{main, itcm, ov}}

	if _, err := p.Relocations(main); err == nil {
		t.Error("ambiguous target modules must fail")
	}
}
