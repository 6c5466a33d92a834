// Package callgraph builds lattice graphs from discovered functions: a
// whole-program call graph and per-function control flow graphs.
package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"dsdelink/internal/analysis"
)

// Build constructs a call graph across all modules. Each function becomes a
// node; each call or tail call becomes an edge. Targets with no discovered
// function keep their raw address as the node name.
func Build(modules []*analysis.Module) *lattice.Graph {
	names := make(map[uint32]string)
	for _, m := range modules {
		for addr, f := range m.Functions {
			names[addr] = f.Name
		}
	}

	g := &lattice.Graph{}
	for _, m := range modules {
		for _, f := range sortedFunctions(m) {
			g.Nodes = append(g.Nodes, f.Name)
			for _, call := range f.FunctionCalls {
				callee, ok := names[call.Address]
				if !ok {
					callee = fmt.Sprintf("0x%08x", call.Address)
				}
				g.Edges = append(g.Edges, lattice.Edge{
					Caller: f.Name,
					Callee: callee,
				})
			}
		}
	}
	g.Dedup()
	return g
}

func sortedFunctions(m *analysis.Module) []*analysis.Function {
	funcs := make([]*analysis.Function, 0, len(m.Functions))
	for _, f := range m.Functions {
		funcs = append(funcs, f)
	}
	sort.Slice(funcs, func(i, j int) bool {
		return funcs[i].FirstInstructionAddress < funcs[j].FirstInstructionAddress
	})
	return funcs
}
