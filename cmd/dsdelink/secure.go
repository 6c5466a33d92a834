package main

import (
	"flag"
	"fmt"
	"sort"

	"dsdelink/internal/analysis"
)

// The secure area is the first 2 KiB of the main module. Its encrypted header
// is followed by tiny Thumb wrappers around BIOS swi calls.
const secureAreaSize = 0x800

func cmdSecure(args []string) error {
	fs := flag.NewFlagSet("secure", flag.ExitOnError)
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

	code := main.Code
	if len(code) > secureAreaSize {
		code = code[:secureAreaSize]
	}
	functions := analysis.FindSecureAreaFunctions(code, main.BaseAddress)

	addrs := make([]uint32, 0, len(functions))
	for addr := range functions {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		f := functions[addr]
		fmt.Printf("%#010x %s\n", f.StartAddress, f.Name)
	}
	fmt.Printf("%d secure area functions\n", len(functions))
	return nil
}
