// Command venuekit runs rate limited venue connections and serves their
// limiter state, market metadata and precision helpers over HTTP.
//
// Usage:
//
//	venuekit --config venues.yaml
//	venuekit --venue binance --algorithm rolling_window (single venue from flags)
//	venuekit setup                                       (interactive wizard)
//	venuekit format --value 1.45 --digits 1 --count decimals
//
// Optional environment variables, also read from .env:
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	BYBIT_API_KEY, BYBIT_API_SECRET
//	HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/config"
	"github.com/vadiminshakov/venuekit/internal"
	"github.com/vadiminshakov/venuekit/internal/setup"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "setup":
			if err := setup.RunTUI(setup.DefaultFilename); err != nil {
				log.Fatal(err)
			}
			return
		case "format":
			out, err := runFormat(args[1:])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(out)
			return
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	settings, err := config.Get("venuekit", args)
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := internal.Run(ctx, settings, logger); err != nil {
		logger.Error("venuekit stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("venuekit stopped")
}
