// Command match-pending runs one opportunistic matching pass over the
// declared pending transfers.
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
	flags, err := cli.ParseMatchFlags(os.Args[1:])
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

	report, err := cli.RunMatchPending(ctx, cfg, flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
	if len(report.Conflicts) > 0 {
		stop()
		os.Exit(3)
	}
}
