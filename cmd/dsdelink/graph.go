package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/zboralski/lattice/render"

	"dsdelink/internal/analysis"
	"dsdelink/internal/callgraph"
	"dsdelink/internal/output"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	configPath := fs.String("config", "", "path to program descriptor")
	outDir := fs.String("out", "", "output directory")
	withCFG := fs.Bool("cfg", false, "also render per-function control flow graphs")
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

	cfg, program, err := loadProgram(*configPath)
	if err != nil {
		return err
	}
	err = program.AnalyzeFunctions(context.Background(), analysis.SearchOptions{
		MaxStartSearchDistance: uint32(*maxSearch),
	})
	if err != nil {
		return err
	}

	g := callgraph.Build(program.Modules)
	dot := render.DOT(g, cfg.MainModule.Name)
	if err := output.WriteDOT(*outDir, "callgraph", dot); err != nil {
		return err
	}

	if *withCFG {
		cg := callgraph.BuildCFG(program.Modules)
		dot := render.DOTCFG(cg, cfg.MainModule.Name)
		if err := output.WriteDOT(*outDir, "cfg", dot); err != nil {
			return err
		}
	}
	return nil
}
