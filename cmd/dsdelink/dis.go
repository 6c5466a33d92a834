package main

import (
	"context"
	"flag"
	"fmt"

	"dsdelink/internal/analysis"
	"dsdelink/internal/output"
)

func cmdDis(args []string) error {
	fs := flag.NewFlagSet("dis", flag.ExitOnError)
	configPath := fs.String("config", "", "path to program descriptor")
	outDir := fs.String("out", "", "output directory")
	maxSearch := fs.Uint("max-search", 0, "bytes to keep probing past the last valid function")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("--config is required")
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}

	_, program, err := loadProgram(*configPath)
	if err != nil {
		return err
	}
	err = program.AnalyzeFunctions(context.Background(), analysis.SearchOptions{
		MaxStartSearchDistance: uint32(*maxSearch),
	})
	if err != nil {
		return err
	}

	for _, m := range program.Modules {
		for _, f := range m.Functions {
			insts := f.Instructions(m.Code, m.BaseAddress)
			name := m.Name + "/" + f.Name
			if err := output.WriteASM(*outDir, name, insts); err != nil {
				return err
			}
		}
	}
	return nil
}
