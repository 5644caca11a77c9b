// Command detect runs transfer detection once over a date window.
//
// Usage:
//
//	detect -from 2025-03-01 -to 2025-03-31 [-accounts a,b] [-threshold 95]
//	       [-date-tolerance 3] [-amount-tolerance 0.50] [-dry-run] [-include-locked]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/transfer-reconciler/internal/cli"
)

func main() {
	flags, err := cli.ParseDetectFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := cli.RunDetect(ctx, cfg, flags, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
