package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type candidateResponse struct {
	InvoiceID    string `json:"invoice_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	StageID      string `json:"stage_id"`
	DueDate      string `json:"due_date"`
	Value        string `json:"value"`
	PaymentLink  string `json:"payment_link,omitempty"`
}

type previewResponse struct {
	Today                    string              `json:"today"`
	BlockedByBusinessHours   bool                `json:"blocked_by_business_hours"`
	EstimatedDurationSeconds int64               `json:"estimated_duration_seconds"`
	Candidates               []candidateResponse `json:"candidates"`
	Summary                  *reminder.Summary   `json:"summary"`
}

type stagesResponse struct {
	Stages          []reminder.Stage `json:"stages"`
	IntervalSeconds int64            `json:"interval_seconds"`
}

type recordResponse struct {
	ID               uuid.UUID          `json:"id"`
	InvoiceID        string             `json:"invoice_id"`
	CustomerID       string             `json:"customer_id"`
	StageID          string             `json:"stage_id"`
	DueDate          string             `json:"due_date"`
	Value            string             `json:"value"`
	Status           reminder.LogStatus `json:"status"`
	GatewayMessageID *string            `json:"gateway_message_id,omitempty"`
	ErrorMessage     *string            `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

func toPreviewResponse(plan *reminder.Plan, estimate time.Duration) previewResponse {
	resp := previewResponse{
		Today:                    plan.Today.Format(time.DateOnly),
		BlockedByBusinessHours:   plan.Summary.BlockedByBusinessHours,
		EstimatedDurationSeconds: int64(estimate.Seconds()),
		Candidates:               make([]candidateResponse, len(plan.Candidates)),
		Summary:                  plan.Summary,
	}

	for i, c := range plan.Candidates {
		resp.Candidates[i] = candidateResponse{
			InvoiceID:    c.Invoice.ID,
			CustomerID:   c.Customer.ID,
			CustomerName: c.Customer.DisplayName,
			Phone:        c.Customer.Phone,
			StageID:      c.Stage.ID,
			DueDate:      c.Invoice.DueDate.Format(time.DateOnly),
			Value:        c.Invoice.Value.StringFixed(2),
			PaymentLink:  c.Invoice.PaymentLinkURL,
		}
	}

	return resp
}

func toRecordResponse(rec *reminder.SendLogRecord) recordResponse {
	return recordResponse{
		ID:               rec.ID,
		InvoiceID:        rec.InvoiceID,
		CustomerID:       rec.CustomerID,
		StageID:          rec.StageID,
		DueDate:          rec.DueDate.Format(time.DateOnly),
		Value:            rec.Value.StringFixed(2),
		Status:           rec.Status,
		GatewayMessageID: rec.GatewayMessageID,
		ErrorMessage:     rec.ErrorMessage,
		CreatedAt:        rec.CreatedAt,
	}
}

func toRecordResponseList(records []*reminder.SendLogRecord) []recordResponse {
	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = toRecordResponse(rec)
	}

	return resp
}
