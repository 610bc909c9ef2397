// Command gestly-api serves the Gestly dashboard API, the public booking API
// and the Stripe webhook endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gestly/gestly/internal/app/runtime"
	"github.com/gestly/gestly/internal/config"
	"github.com/gestly/gestly/pkg/logger"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	addr := flag.String("addr", "", "Listen address (overrides GESTLY_HTTP_ADDR)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.New(cfg.Logging.Logger())
	log.WithField("version", Version).Info("starting gestly-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg, Version, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise application")
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.WithError(runErr).Error("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
	log.Info("gestly-api stopped")
}
