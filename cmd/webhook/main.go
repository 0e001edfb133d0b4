package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rupaya-pay/rupaya/internal/config"
	"github.com/rupaya-pay/rupaya/internal/infra"
	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/logging"
	"github.com/rupaya-pay/rupaya/internal/notification"
	"github.com/rupaya-pay/rupaya/internal/settlement"
	"github.com/rupaya-pay/rupaya/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var ledgerBackend ledger.Ledger
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ledgerBackend = ledger.NewPostgresLedger(db)
	} else if cfg.IsDev() {
		// Dev mode only. A standalone in-memory ledger settles against
		// nothing the API process can see.
		ledgerBackend = ledger.NewInMemory()
	} else {
		logger.Error("DATABASE_URL is required", "env", cfg.Env)
		os.Exit(1)
	}

	notifier := notification.NewLoggerNotifier(logger)
	settlements := settlement.NewService(ledgerBackend, notifier, logger)
	app := webhook.NewApp(cfg, logger, settlements)

	logger.Info("webhook listener starting", "addr", cfg.WebhookAddress(), "env", cfg.Env)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- app.Listen(cfg.WebhookAddress())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("webhook listener exited cleanly")
}
