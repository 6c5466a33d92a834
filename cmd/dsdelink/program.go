package main

import (
	"fmt"
	"os"
	"path/filepath"

	"dsdelink/internal/analysis"
	"dsdelink/internal/config"
	"dsdelink/internal/reloc"
)

// loadProgram reads the program descriptor and every module's code. Module
// code paths are relative to the config file.
func loadProgram(configPath string) (*config.Config, *analysis.Program, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Dir(configPath)

	program := &analysis.Program{}
	add := func(m *config.Module, kind reloc.ModuleKind) error {
		code, err := os.ReadFile(filepath.Join(dir, m.Code))
		if err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
		program.Modules = append(program.Modules, &analysis.Module{
			Name:         m.Name,
			Kind:         kind,
			Code:         code,
			BaseAddress:  m.BaseAddress,
			EntryAddress: m.EntryAddress,
		})
		return nil
	}

	if err := add(&cfg.MainModule, reloc.Arm9Kind()); err != nil {
		return nil, nil, err
	}
	for i := range cfg.Autoloads {
		a := &cfg.Autoloads[i]
		if err := add(&a.Module, a.ModuleKind()); err != nil {
			return nil, nil, err
		}
	}
	for i := range cfg.Overlays {
		o := &cfg.Overlays[i]
		if err := add(&o.Module, o.ModuleKind()); err != nil {
			return nil, nil, err
		}
	}
	return cfg, program, nil
}
