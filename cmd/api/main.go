package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/josh-kwaku/backoffice-ledger/internal/app"
	"github.com/josh-kwaku/backoffice-ledger/internal/config"
	"github.com/josh-kwaku/backoffice-ledger/internal/handler"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/repository"
	"github.com/josh-kwaku/backoffice-ledger/internal/router"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("ledger-api", cfg.LogLevel, cfg.AppEnv)

	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(startCtx, cfg)
	if err != nil {
		cancelStart()
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer a.Pool.Close()

	err = a.Ledger.Bootstrap(startCtx)
	cancelStart()
	if err != nil {
		slog.Error("failed to bootstrap cash boxes", "error", err)
		os.Exit(1)
	}

	h := router.New(router.Handlers{
		Health:    handler.NewHealthHandler(a.Pool, a.Ledger),
		Boxes:     handler.NewBoxHandler(a.Ledger, a.Auditor),
		Ledger:    handler.NewLedgerHandler(a.Ledger),
		Movements: handler.NewMovementHandler(a.Ledger),
		Projects:  handler.NewProjectHandler(a.Projects),
		Loans:     handler.NewLoanHandler(a.Loans),
		Rates:     handler.NewRateHandler(a.Rates),
	}, router.Options{
		JWTSecret:      cfg.JWTSecret,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "rate_oracle", cfg.RateOracle,
			"cancellation_policy", cfg.LoanCancellationPolicy, "repayment_target", cfg.LoanRepaymentTarget)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
