package analysis

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"dsdelink/internal/reloc"
)

// Module is one loaded binary of a program, plus its analysis results.
type Module struct {
	Name        string
	Kind        reloc.ModuleKind
	Code        []byte
	BaseAddress uint32
	// EntryAddress is set on the main module only.
	EntryAddress uint32

	// Functions is filled by AnalyzeFunctions, keyed by first instruction
	// address.
	Functions map[uint32]*Function
}

// EndAddress returns the address just past the module's code.
func (m *Module) EndAddress() uint32 {
	return m.BaseAddress + uint32(len(m.Code))
}

// Contains reports whether address falls inside the module.
func (m *Module) Contains(address uint32) bool {
	return address >= m.BaseAddress && address < m.EndAddress()
}

// Program is a set of modules that form one ROM's code.
type Program struct {
	Modules []*Module
}

// MainModule returns the module holding the entry function.
func (p *Program) MainModule() *Module {
	for _, m := range p.Modules {
		if m.EntryAddress != 0 {
			return m
		}
	}
	return nil
}

// SearchOptions tunes the per-module function search.
type SearchOptions struct {
	// MaxStartSearchDistance is how far past the last found function to
	// keep probing for valid starts.
	MaxStartSearchDistance uint32
	UseDataAsUpperBound    bool
}

// AnalyzeFunctions discovers function boundaries in every module. Modules are
// independent, so each one is analyzed on its own goroutine; the scan within
// a module stays strictly sequential.
func (p *Program) AnalyzeFunctions(ctx context.Context, options SearchOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range p.Modules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.Functions = FindFunctions(FindFunctionsOptions{
				NamePrefix:             "func_",
				BaseAddress:            m.BaseAddress,
				ModuleCode:             m.Code,
				ModuleStartAddress:     m.BaseAddress,
				ModuleEndAddress:       m.EndAddress(),
				MaxStartSearchDistance: options.MaxStartSearchDistance,
				UseDataAsUpperBound:    options.UseDataAsUpperBound,
			})
			log.Infof("module %s: found %d functions", m.Name, len(m.Functions))
			return nil
		})
	}
	return g.Wait()
}

// ModulesContaining returns the identity of every module whose address range
// covers address, in program order.
func (p *Program) ModulesContaining(address uint32) []reloc.ModuleKind {
	var kinds []reloc.ModuleKind
	for _, m := range p.Modules {
		if m.Contains(address) {
			kinds = append(kinds, m.Kind)
		}
	}
	return kinds
}

// Relocations classifies every call leaving module m against the whole
// program's address space and returns the resulting relocation set.
func (p *Program) Relocations(m *Module) (*reloc.Relocations, error) {
	relocations := reloc.NewRelocations()
	for _, function := range m.Functions {
		for from, call := range function.FunctionCalls {
			if m.Contains(call.Address) {
				continue
			}
			module, err := reloc.FromModules(p.ModulesContaining(call.Address))
			if err != nil {
				return nil, fmt.Errorf("analysis: call from %#x in %s: %w", from, function.Name, err)
			}
			if module.IsNone() {
				log.Debugf("call from %#x in %s to %#x resolves to no module", from, function.Name, call.Address)
			}
			if err := relocations.AddCall(from, call.Address, module, function.Thumb, call.Thumb); err != nil {
				return nil, err
			}
		}
	}
	return relocations, nil
}
