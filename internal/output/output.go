// Package output writes analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"dsdelink/internal/analysis"
	"dsdelink/internal/disasm"
	"dsdelink/internal/ins"
)

// FunctionEntry is one discovered function in functions.json.
type FunctionEntry struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
	Size   uint32 `json:"size"`
	Thumb  bool   `json:"thumb,omitempty"`
	Calls  int    `json:"calls,omitempty"`
}

// WriteFunctionsJSON writes every discovered function, in address order per
// module, to functions.json.
func WriteFunctionsJSON(dir string, modules []*analysis.Module) error {
	var entries []FunctionEntry
	for _, m := range modules {
		addrs := make([]uint32, 0, len(m.Functions))
		for addr := range m.Functions {
			addrs = append(addrs, addr)
		}
		sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
		for _, addr := range addrs {
			f := m.Functions[addr]
			entries = append(entries, FunctionEntry{
				Module: m.Name,
				Name:   f.Name,
				Start:  f.StartAddress,
				End:    f.EndAddress,
				Size:   f.Size(),
				Thumb:  f.Thumb,
				Calls:  len(f.FunctionCalls),
			})
		}
	}
	return writeJSON(filepath.Join(dir, "functions.json"), entries)
}

// SymbolEntry represents a named code address.
type SymbolEntry struct {
	Address uint32 `json:"address"`
	Name    string `json:"name"`
	Size    uint32 `json:"size,omitempty"`
}

// WriteSymbolsJSON writes symbols to symbols.json.
func WriteSymbolsJSON(dir string, symbols []SymbolEntry) error {
	return writeJSON(filepath.Join(dir, "symbols.json"), symbols)
}

// WriteASM writes disassembled instructions to asm/<name>.txt.
// name may contain path separators (e.g., "main/func_02000000") for
// per-module grouping.
func WriteASM(dir string, name string, insts []ins.Ins) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	return os.WriteFile(path, []byte(disasm.Format(insts)), 0644)
}

// WriteDOT writes a rendered graphviz graph to <name>.dot.
func WriteDOT(dir string, name string, dot string) error {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, []byte(dot), 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
