package main

import (
	"flag"
	"fmt"

	"dsdelink/internal/analysis"
)

func cmdEntry(args []string) error {
	fs := flag.NewFlagSet("entry", flag.ExitOnError)
	configPath := fs.String("config", "", "path to program descriptor")

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
	main := program.MainModule()
	if main == nil {
		return fmt.Errorf("no module has an entry address")
	}

	address, err := analysis.FindMainFunction(main.Code, main.BaseAddress, main.EntryAddress, main.EndAddress())
	if err != nil {
		return err
	}
	fmt.Printf("entry: %#010x\nmain:  %#010x\n", main.EntryAddress, address)
	return nil
}
