package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"buckaneers/server/internal/app"
	"buckaneers/server/internal/telemetry"
)

func main() {
	logger := telemetry.WrapLogger(log.Default())

	cfg := app.ApplyEnv(app.DefaultConfig(), os.Getenv, logger)
	cfg, err := app.ParseFlags(cfg, os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
