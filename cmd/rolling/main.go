package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mixpanelsteve/mp-rolling/internal/app"
	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rolling start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("rolling starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err.Error())
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner run: %w", err)
	}
	return nil
}
