package main

import (
	"fmt"
	"os"

	"dsdelink/internal/logging"
)

func main() {
	logging.Setup()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "functions":
		err = cmdFunctions(os.Args[2:])
	case "dis":
		err = cmdDis(os.Args[2:])
	case "entry":
		err = cmdEntry(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "relocs":
		err = cmdRelocs(os.Args[2:])
	case "secure":
		err = cmdSecure(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `dsdelink - Nintendo DS binary delinker

Usage:
  dsdelink functions --config <yaml> [--out <dir>]   Find function boundaries
  dsdelink dis       --config <yaml> --out <dir>     Per-function disassembly
  dsdelink entry     --config <yaml>                 Resolve entry tail call to main
  dsdelink graph     --config <yaml> --out <dir>     Call graph and CFGs as DOT
  dsdelink relocs    --config <yaml> [--out <dir>]   Classify relocation targets
  dsdelink secure    --config <yaml>                 List secure area functions

Set DSDELINK_LOG_LEVEL=debug for verbose logging.
`)
}
