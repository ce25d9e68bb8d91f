package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mixpanelsteve/mp-rolling/internal/app"
	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mpquery: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("path", "", "method path, segments separated by '/' (e.g. events/top)")
	params := flag.String("params", "{}", "request parameters as a JSON object")
	format := flag.String("format", mixpanel.DefaultFormat, "response format")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		return fmt.Errorf("-path is required")
	}

	req, err := app.ParseQueryRequest(*path, *params, *format)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := app.NewQuery(cfg, log)
	if err != nil {
		return err
	}
	return q.Run(ctx, req, os.Stdout)
}
