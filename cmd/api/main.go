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
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cobrador/internal/bootstrap"
	"github.com/MrJamesThe3rd/cobrador/internal/config"
	"github.com/MrJamesThe3rd/cobrador/internal/database"
	"github.com/MrJamesThe3rd/cobrador/internal/export"
	cobradorHttp "github.com/MrJamesThe3rd/cobrador/internal/http"
	exportHandler "github.com/MrJamesThe3rd/cobrador/internal/http/export"
	reminderHandler "github.com/MrJamesThe3rd/cobrador/internal/http/reminder"
	"github.com/MrJamesThe3rd/cobrador/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(logger)

	// Missing provider credentials are not fatal for the API: runs report not configured.
	if err := cfg.Validate(); err != nil {
		logger.Warn("reminder configuration incomplete", "error", err)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	reminderService, err := bootstrap.NewReminderService(cfg, db, logger)
	if err != nil {
		logger.Error("failed to build reminder service", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	exportService := export.NewService(reminderService, loc)

	router := cobradorHttp.New(
		reminderHandler.NewHandler(reminderService),
		exportHandler.NewHandler(exportService),
		cobradorHttp.Options{
			JWTSecret:      cfg.Auth.JWTSecret,
			AllowedOrigins: cfg.Auth.AllowedOrigins,
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.Server.Timeout * 2,
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.App.Env)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Stops a background dispatch at its next wait; the in-flight send is still logged.
	reminderService.Close()

	logger.Info("server stopped")
}
