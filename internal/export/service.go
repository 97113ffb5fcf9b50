package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const (
	csvFilename     = "send_log.csv"
	summaryFilename = "resumo.txt"
)

// Lister is the read side of the send log.
type Lister interface {
	Log(ctx context.Context, filter reminder.LogFilter) ([]*reminder.SendLogRecord, error)
}

// Service builds audit exports of the reminder send log.
type Service struct {
	log Lister
	loc *time.Location
}

// NewService creates a new export Service. Timestamps are rendered in loc.
func NewService(log Lister, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}

	return &Service{log: log, loc: loc}
}

// Export returns every send-log record matching filter, oldest first.
func (s *Service) Export(ctx context.Context, filter reminder.LogFilter) ([]*reminder.SendLogRecord, error) {
	filter.Limit = 0

	records, err := s.log.Log(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing send log: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// WriteCSV writes records as CSV with a header row.
func (s *Service) WriteCSV(w io.Writer, records []*reminder.SendLogRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{
		"created_at", "stage_id", "invoice_id", "customer_id",
		"due_date", "value", "status", "gateway_message_id", "error",
	}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.CreatedAt.In(s.loc).Format(time.DateTime),
			rec.StageID,
			rec.InvoiceID,
			rec.CustomerID,
			rec.DueDate.Format(time.DateOnly),
			rec.Value.StringFixed(2),
			string(rec.Status),
			deref(rec.GatewayMessageID),
			deref(rec.ErrorMessage),
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// GenerateSummary creates a plain-text per-stage tally of the exported records.
func (s *Service) GenerateSummary(records []*reminder.SendLogRecord) string {
	type tally struct{ sent, failed int }

	byStage := make(map[string]*tally)
	order := make([]string, 0)

	for _, rec := range records {
		t, ok := byStage[rec.StageID]
		if !ok {
			t = &tally{}
			byStage[rec.StageID] = t
			order = append(order, rec.StageID)
		}

		switch rec.Status {
		case reminder.LogStatusSent:
			t.sent++
		case reminder.LogStatusFailed:
			t.failed++
		}
	}

	var sb strings.Builder

	sent, failed := 0, 0

	for _, id := range order {
		t := byStage[id]
		sent += t.sent
		failed += t.failed

		sb.WriteString(fmt.Sprintf("* %s | enviados %d | falhas %d\n", id, t.sent, t.failed))
	}

	sb.WriteString(fmt.Sprintf("Total: %d enviados, %d falhas\n", sent, failed))

	return sb.String()
}

// WriteArchive writes a zip holding the CSV and the text summary.
func (s *Service) WriteArchive(w io.Writer, records []*reminder.SendLogRecord) error {
	zw := zip.NewWriter(w)

	f, err := zw.Create(csvFilename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", csvFilename, err)
	}

	if err := s.WriteCSV(f, records); err != nil {
		return fmt.Errorf("writing %s: %w", csvFilename, err)
	}

	f, err = zw.Create(summaryFilename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", summaryFilename, err)
	}

	if _, err := io.WriteString(f, s.GenerateSummary(records)); err != nil {
		return fmt.Errorf("writing %s: %w", summaryFilename, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
