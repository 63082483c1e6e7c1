// ====================================
// File: cmd/autopilot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/autopilot"
	"github.com/matijamicunovic629/cowprotocol/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/autopilot.yaml", "path to the configuration file")
	flag.Parse()

	log, err := logger.New(logger.DefaultConfig())
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Starting auction autopilot")

	runner := autopilot.NewRunner(log.Logger)
	if err := runner.Initialize(*configPath); err != nil {
		log.Fatal("Failed to initialize autopilot", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("Autopilot execution error", zap.Error(err))
	}
}
