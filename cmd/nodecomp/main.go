// Package main is the entry point for the nodecomp service chain
// orchestrator.
//
// Commands: serve, drivers, version.
package main

import (
	"fmt"
	"os"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
