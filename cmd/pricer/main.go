package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"option-pricer/internal/cli"
	"option-pricer/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(nil, logging.NewLogger())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
