// Package bootstrap wires the reminder service from configuration.
package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/cobrador/internal/billing"
	"github.com/MrJamesThe3rd/cobrador/internal/config"
	"github.com/MrJamesThe3rd/cobrador/internal/gateway"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder/store"
)

// NewReminderService builds the service over the billing API, Twilio and the
// Postgres send log. The store doubles as the cross-process run lock.
func NewReminderService(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*reminder.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	gate := reminder.Gate{
		StartHour: cfg.Reminder.StartHour,
		EndHour:   cfg.Reminder.EndHour,
		Location:  loc,
	}

	if gate.StartHour >= gate.EndHour {
		return nil, fmt.Errorf("invalid business hours [%d, %d)", gate.StartHour, gate.EndHour)
	}

	billingClient := billing.New(cfg.Billing.BaseURL, cfg.Billing.APIKey,
		billing.WithHTTPClient(&http.Client{Timeout: cfg.Billing.Timeout}),
		billing.WithLocation(loc),
		billing.WithRateLimit(cfg.Billing.RequestsPerSecond),
	)

	sender := gateway.NewTwilio(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.From,
		cfg.Twilio.Channel,
		cfg.Reminder.PhoneRegion,
	)

	sendLog := store.New(db)

	svc := reminder.NewService(
		billingClient,
		billingClient,
		sendLog,
		sender,
		reminder.NewRenderer(cfg.Reminder.Disclaimer),
		reminder.Options{
			Gate:              gate,
			Location:          loc,
			Interval:          cfg.Reminder.Interval,
			SendTimeout:       cfg.Reminder.SendTimeout,
			PageSize:          cfg.Billing.PageSize,
			DedupBatch:        cfg.Reminder.DedupBatch,
			LookupConcurrency: cfg.Reminder.LookupConcurrency,
			Locker:            sendLog,
			Logger:            logger,
		},
	)

	return svc, nil
}
