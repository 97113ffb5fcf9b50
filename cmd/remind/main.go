// Command remind performs one reminder run and exits. It is meant to be
// triggered by cron a few times per business day.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cobrador/internal/bootstrap"
	"github.com/MrJamesThe3rd/cobrador/internal/config"
	"github.com/MrJamesThe3rd/cobrador/internal/database"
	"github.com/MrJamesThe3rd/cobrador/internal/logging"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
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

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
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

	svc, err := bootstrap.NewReminderService(cfg, db, logger)
	if err != nil {
		logger.Error("failed to build reminder service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reminder.DryRun {
		plan, err := svc.Preview(ctx)
		if err != nil {
			logger.Error("reminder preview failed", "error", err)
			os.Exit(1)
		}

		for _, c := range plan.Candidates {
			logger.Info("would remind",
				"stage", c.Stage.ID,
				"invoice_id", c.Invoice.ID,
				"customer_id", c.Customer.ID,
				"due_date", reminder.FormatDate(c.Invoice.DueDate),
				"amount", reminder.FormatBRL(c.Invoice.Value),
			)
		}

		logSummary(logger, plan.Summary)

		return
	}

	summary, err := svc.Run(ctx)
	if summary != nil {
		logSummary(logger, summary)
	}

	if err != nil {
		logger.Error("reminder run failed", "error", err)
		os.Exit(1)
	}
}

func logSummary(logger *slog.Logger, s *reminder.Summary) {
	for _, st := range s.Stages {
		attrs := []any{
			"stage", st.StageID,
			"due_date", st.DueDate,
			"found", st.Found,
			"already_sent", st.AlreadySent,
			"planned", st.Planned,
			"sent", st.Sent,
			"failed", st.Failed,
			"skipped", st.Skipped,
		}

		if st.Error != "" {
			logger.Warn("stage summary", append(attrs, "error", st.Error)...)
			continue
		}

		logger.Info("stage summary", attrs...)
	}

	logger.Info("reminder run summary",
		"total_candidates", s.TotalCandidates,
		"sent", s.Sent,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"no_phone", s.NoPhone,
		"unresolved_customer", s.UnresolvedCustomer,
		"blocked_by_business_hours", s.BlockedByBusinessHours,
		"already_running", s.AlreadyRunning,
		"interrupted", s.Interrupted,
	)
}
