package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"dsdelink/internal/analysis"
	"dsdelink/internal/output"
)

func cmdFunctions(args []string) error {
	fs := flag.NewFlagSet("functions", flag.ExitOnError)
	configPath := fs.String("config", "", "path to program descriptor")
	outDir := fs.String("out", "", "output directory for functions.json")
	maxSearch := fs.Uint("max-search", 0, "bytes to keep probing past the last valid function")
	dataBound := fs.Bool("data-bound", false, "use pool constant targets as search upper bounds")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("--config is required")
	}

	_, program, err := loadProgram(*configPath)
	if err != nil {
		return err
	}

	err = program.AnalyzeFunctions(context.Background(), analysis.SearchOptions{
		MaxStartSearchDistance: uint32(*maxSearch),
		UseDataAsUpperBound:    *dataBound,
	})
	if err != nil {
		return err
	}

	total := 0
	for _, m := range program.Modules {
		fmt.Fprintf(os.Stderr, "%s: %d functions\n", m.Name, len(m.Functions))
		total += len(m.Functions)
	}
	fmt.Fprintf(os.Stderr, "total: %d functions\n", total)

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", *outDir, err)
		}
		if err := output.WriteFunctionsJSON(*outDir, program.Modules); err != nil {
			return err
		}
		var symbols []output.SymbolEntry
		for _, m := range program.Modules {
			for _, f := range m.Functions {
				symbols = append(symbols, output.SymbolEntry{
					Address: f.StartAddress,
					Name:    f.Name,
					Size:    f.Size(),
				})
			}
		}
		sort.Slice(symbols, func(i, j int) bool { return symbols[i].Address < symbols[j].Address })
		if err := output.WriteSymbolsJSON(*outDir, symbols); err != nil {
			return err
		}
	}
	return nil
}
