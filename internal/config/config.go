package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name     string `envconfig:"APP_NAME" default:"Cobrador"`
		Port     int    `envconfig:"PORT" default:"8080"`
		Env      string `envconfig:"APP_ENV" default:"dev"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"cobrador"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		// JWTSecret enables bearer-token auth on /api/v1 when set.
		JWTSecret      string   `envconfig:"AUTH_JWT_SECRET"`
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Billing struct {
		BaseURL  string        `envconfig:"BILLING_BASE_URL" default:"https://api.asaas.com"`
		APIKey   string        `envconfig:"BILLING_API_KEY"`
		PageSize int           `envconfig:"BILLING_PAGE_SIZE" default:"100"`
		Timeout  time.Duration `envconfig:"BILLING_TIMEOUT" default:"30s"`

		// RequestsPerSecond throttles calls to the provider; 0 disables it.
		RequestsPerSecond float64 `envconfig:"BILLING_REQUESTS_PER_SECOND" default:"5"`
	}

	Twilio struct {
		AccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
		AuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
		From       string `envconfig:"TWILIO_FROM"`
		Channel    string `envconfig:"TWILIO_CHANNEL" default:"whatsapp"`
	}

	Reminder struct {
		Timezone          string        `envconfig:"REMINDER_TIMEZONE" default:"America/Sao_Paulo"`
		StartHour         int           `envconfig:"REMINDER_START_HOUR" default:"8"`
		EndHour           int           `envconfig:"REMINDER_END_HOUR" default:"19"`
		Interval          time.Duration `envconfig:"REMINDER_INTERVAL" default:"3m"`
		SendTimeout       time.Duration `envconfig:"REMINDER_SEND_TIMEOUT" default:"30s"`
		DedupBatch        int           `envconfig:"REMINDER_DEDUP_BATCH" default:"100"`
		LookupConcurrency int           `envconfig:"REMINDER_LOOKUP_CONCURRENCY" default:"8"`
		PhoneRegion       string        `envconfig:"REMINDER_PHONE_REGION" default:"BR"`
		Disclaimer        string        `envconfig:"REMINDER_DISCLAIMER"`
		DryRun            bool          `envconfig:"REMINDER_DRY_RUN" default:"false"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// Location returns the operating timezone used for due dates and the business-hours gate.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Reminder.Timezone, err)
	}

	return loc, nil
}

// Validate reports missing provider credentials. Any error here is fatal for a reminder run.
func (c *Config) Validate() error {
	var errs []error

	if c.Billing.APIKey == "" {
		errs = append(errs, errors.New("BILLING_API_KEY is required"))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}

	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}

	if c.Twilio.From == "" {
		errs = append(errs, errors.New("TWILIO_FROM is required"))
	}

	if c.Reminder.StartHour < 0 || c.Reminder.EndHour > 24 || c.Reminder.StartHour >= c.Reminder.EndHour {
		errs = append(errs, fmt.Errorf("invalid business hours [%d, %d)", c.Reminder.StartHour, c.Reminder.EndHour))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
