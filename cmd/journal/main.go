package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trade-journal-go/internal/client"
	"trade-journal-go/internal/config"
	"trade-journal-go/internal/logger"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(&cfg.Client, log)
	if err := newRootCmd(api).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
