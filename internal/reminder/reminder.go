package reminder

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured      = errors.New("reminder service is not configured")
	ErrAlreadySent        = errors.New("reminder already sent for this invoice and stage")
	ErrDispatchInProgress = errors.New("a reminder dispatch is already in progress")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrCustomerNotFound   = errors.New("customer not found")
)

// StatusClass is the invoice status class a stage queries the billing provider for.
type StatusClass string

const (
	StatusPending  StatusClass = "pending"
	StatusDueToday StatusClass = "due_today_pending"
	StatusOverdue  StatusClass = "overdue"
)

// Invoice is a billing-provider invoice. Read-only here.
type Invoice struct {
	ID             string
	CustomerID     string
	Value          decimal.Decimal
	DueDate        time.Time
	Status         StatusClass
	PaymentLinkURL string
}

// Customer is a billing-provider customer. Phone is raw and may be empty.
type Customer struct {
	ID          string
	DisplayName string
	Phone       string
}

// Candidate is one planned dispatch attempt, valid for a single run.
type Candidate struct {
	Invoice  Invoice
	Customer Customer
	Stage    Stage
}

// LogStatus is the outcome of a dispatch attempt.
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// SendLogRecord is one append-only dispatch attempt.
type SendLogRecord struct {
	ID               uuid.UUID
	InvoiceID        string
	CustomerID       string
	StageID          string
	DueDate          time.Time
	Value            decimal.Decimal
	Status           LogStatus
	GatewayMessageID *string
	ErrorMessage     *string
	CreatedAt        time.Time
}

type LogFilter struct {
	Status    *LogStatus
	StageID   *string
	InvoiceID *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}
