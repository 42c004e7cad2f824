package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"immersion-stats/internal/adapters/cli"
	applog "immersion-stats/internal/infra/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := applog.New(os.Stderr, os.Getenv("APP_ENV"))
	root := cli.NewRootCmd(&cli.App{Out: os.Stdout, Logger: logger})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
