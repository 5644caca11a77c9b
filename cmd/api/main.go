// Command api serves the reconciliation HTTP API and runs the periodic
// pending-transfer matcher.
package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/transfer-reconciler/internal/cli"
)

func main() {
	flags, err := cli.ParseServeFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
