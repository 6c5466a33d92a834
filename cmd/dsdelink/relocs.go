package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"dsdelink/internal/analysis"
	"dsdelink/internal/config"
)

func cmdRelocs(args []string) error {
	fs := flag.NewFlagSet("relocs", flag.ExitOnError)
	configPath := fs.String("config", "", "path to program descriptor")
	outDir := fs.String("out", "", "fallback directory for modules with no relocations path")
	maxSearch := fs.Uint("max-search", 0, "bytes to keep probing past the last valid function")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("--config is required")
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

	paths := relocPaths(cfg, filepath.Dir(*configPath))
	for i, m := range program.Modules {
		relocations, err := program.Relocations(m)
		if err != nil {
			return err
		}

		path := paths[i]
		if path == "" {
			if *outDir == "" {
				log.Warnf("module %s has no relocations path, skipping", m.Name)
				continue
			}
			path = filepath.Join(*outDir, m.Name+".relocs.txt")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
		if err := relocations.WriteFile(path); err != nil {
			return err
		}
		log.Infof("module %s: %d relocations -> %s", m.Name, relocations.Len(), path)
	}
	return nil
}

// relocPaths returns each module's relocations file path in program module
// order, resolved relative to the config directory. Empty when unset.
func relocPaths(cfg *config.Config, dir string) []string {
	resolve := func(p string) string {
		if p == "" {
			return ""
		}
		return filepath.Join(dir, p)
	}
	paths := []string{resolve(cfg.MainModule.Relocations)}
	for i := range cfg.Autoloads {
		paths = append(paths, resolve(cfg.Autoloads[i].Relocations))
	}
	for i := range cfg.Overlays {
		paths = append(paths, resolve(cfg.Overlays[i].Relocations))
	}
	return paths
}
