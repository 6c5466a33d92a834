package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"dsdelink/internal/analysis"
	"dsdelink/internal/ins"
)

// BuildCFG constructs a lattice.CFGGraph with one FuncCFG per discovered
// function, in address order per module.
func BuildCFG(modules []*analysis.Module) *lattice.CFGGraph {
	names := make(map[uint32]string)
	for _, m := range modules {
		for addr, f := range m.Functions {
			names[addr] = f.Name
		}
	}

	cg := &lattice.CFGGraph{}
	for _, m := range modules {
		for _, f := range sortedFunctions(m) {
			lcfg, _ := BuildFuncCFG(f, m.Code, m.BaseAddress, names)
			cg.Funcs = append(cg.Funcs, lcfg)
		}
	}
	return cg
}

// BuildFuncCFG builds a single-function lattice.FuncCFG by splitting the
// function's instruction stream at its labels. Returns the FuncCFG and the
// number of basic blocks (for filtering trivial functions). names maps
// function start addresses to display names for call sites.
func BuildFuncCFG(f *analysis.Function, moduleCode []byte, baseAddress uint32, names map[uint32]string) (*lattice.FuncCFG, int) {
	insts, index := decodeFunction(f, moduleCode, baseAddress)

	leaders := map[int]bool{0: true}
	for _, addr := range f.Labels.All() {
		if idx, ok := index[addr]; ok {
			leaders[idx] = true
		}
	}
	for idx := range insts {
		i := &insts[idx]
		if idx+1 < len(insts) && (branchDest(i) != 0 || isBlockTerm(i)) {
			leaders[idx+1] = true
		}
	}

	starts := make([]int, 0, len(leaders))
	for idx := range leaders {
		starts = append(starts, idx)
	}
	sort.Ints(starts)

	blockOf := make(map[int]int, len(insts))
	lcfg := &lattice.FuncCFG{Name: f.Name}
	for bi, start := range starts {
		end := len(insts)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		for idx := start; idx < end; idx++ {
			blockOf[idx] = bi
		}
		lcfg.Blocks = append(lcfg.Blocks, &lattice.BasicBlock{
			ID:    bi,
			Start: start,
			End:   end,
		})
	}

	for _, b := range lcfg.Blocks {
		if b.End == b.Start {
			continue
		}
		last := &insts[b.End-1]
		switch {
		case isBlockTerm(last):
			b.Term = true
		case branchDest(last) != 0:
			dest := branchDest(last)
			if idx, ok := index[dest]; ok {
				b.Succs = append(b.Succs, lattice.Successor{
					BlockID: blockOf[idx],
					Cond:    last.Cond.String(),
				})
			}
			if last.IsConditional() && b.End < len(insts) {
				b.Succs = append(b.Succs, lattice.Successor{BlockID: blockOf[b.End]})
			}
			if !last.IsConditional() && len(b.Succs) == 0 {
				// Unconditional branch out of the function: a tail call.
				b.Term = true
			}
		case b.End < len(insts):
			b.Succs = append(b.Succs, lattice.Successor{BlockID: blockOf[b.End]})
		}

		for idx := b.Start; idx < b.End; idx++ {
			call, ok := f.FunctionCalls[insts[idx].Address]
			if !ok {
				continue
			}
			callee, ok := names[call.Address]
			if !ok {
				callee = fmt.Sprintf("0x%08x", call.Address)
			}
			b.Calls = append(b.Calls, lattice.CallSite{Offset: idx, Callee: callee})
		}
	}

	return lcfg, len(lcfg.Blocks)
}

// decodeFunction decodes the function's instruction stream and indexes it by
// address.
func decodeFunction(f *analysis.Function, moduleCode []byte, baseAddress uint32) ([]ins.Ins, map[uint32]int) {
	insts := f.Instructions(moduleCode, baseAddress)
	index := make(map[uint32]int, len(insts))
	for idx := range insts {
		index[insts[idx].Address] = idx
	}
	return insts, index
}

// branchDest returns the in-stream destination of a plain branch, or zero.
// bl, blx and bx are not plain branches.
func branchDest(i *ins.Ins) uint32 {
	if i.Mnemonic != "b" && i.Mnemonic != "b"+i.Cond.String() {
		return 0
	}
	dest, ok := i.BranchDest()
	if !ok {
		return 0
	}
	return dest
}

// isBlockTerm reports whether the instruction ends control flow: a return or
// an indirect jump.
func isBlockTerm(i *ins.Ins) bool {
	if i.IsConditional() {
		return false
	}
	args := &i.Args
	switch i.Mnemonic {
	case "bx":
		return true
	case "mov":
		return args[0].Kind == ins.KindReg && args[0].Reg == ins.Pc && !args[0].Deref
	case "pop", "ldmia":
		return i.RegisterList().Contains(ins.Pc)
	case "subs":
		return i.Mode == ins.ModeArm && args[0].Kind == ins.KindReg && args[0].Reg == ins.Pc
	case "ldr":
		return args[0].Kind == ins.KindReg && args[0].Reg == ins.Pc && !args[0].Deref
	}
	return false
}
