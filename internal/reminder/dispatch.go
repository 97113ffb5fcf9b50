package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/cobrador/internal/metrics"
)

type outcome int

const (
	outcomeSent outcome = iota + 1
	outcomeFailed
	outcomeSkipped
)

// dispatch walks the worklist one candidate at a time. After every gateway call
// except the last it pauses a full s.interval before the next candidate, so
// consecutive sends start at least that far apart. Only a send-log write
// failure stops the loop early; a cancelled ctx ends it before the next
// candidate and marks the summary interrupted.
func (s *Service) dispatch(ctx context.Context, plan *Plan) error {
	summary := plan.Summary

	s.progress.begin(len(plan.Candidates), s.now())

	defer func() {
		at := s.now()
		s.progress.finish(at)
		summary.FinishedAt = &at
	}()

	last := len(plan.Candidates) - 1

	for i, c := range plan.Candidates {
		if err := ctx.Err(); err != nil {
			s.interrupt(summary, len(plan.Candidates)-i, err)
			return nil
		}

		s.progress.set(StateSending)

		o, err := s.attempt(ctx, c)
		s.tally(summary, c.Stage.ID, o)

		if err != nil {
			return fmt.Errorf("dispatching invoice %s stage %s: %w", c.Invoice.ID, c.Stage.ID, err)
		}

		if i == last || o == outcomeSkipped {
			continue
		}

		s.progress.set(StateWaiting)

		if err := s.pause(ctx); err != nil {
			s.interrupt(summary, last-i, err)
			return nil
		}
	}

	return nil
}

// pause blocks for s.interval or until ctx is done.
func (s *Service) pause(ctx context.Context) error {
	if s.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) interrupt(summary *Summary, remaining int, err error) {
	s.logger.Warn("dispatch interrupted",
		"remaining", remaining,
		"error", err,
	)

	summary.Interrupted = true
}

func (s *Service) tally(summary *Summary, stageID string, o outcome) {
	if o == 0 {
		return
	}

	s.progress.record(o)

	st := summary.stage(stageID)

	switch o {
	case outcomeSent:
		summary.Sent++
		st.Sent++
		metrics.Sent.WithLabelValues(stageID).Inc()
	case outcomeFailed:
		summary.Failed++
		st.Failed++
		metrics.Failed.WithLabelValues(stageID).Inc()
	case outcomeSkipped:
		summary.Skipped++
		st.Skipped++
		metrics.Skipped.WithLabelValues(stageID).Inc()
	}
}

// attempt sends one reminder and appends its log record. A non-nil error means
// the record could not be written; the outcome still reports what the gateway did.
func (s *Service) attempt(ctx context.Context, c Candidate) (outcome, error) {
	logger := s.logger.With(
		"stage", c.Stage.ID,
		"invoice_id", c.Invoice.ID,
		"customer_id", c.Customer.ID,
	)

	// Another run may have sent this pair since planning. When the log cannot
	// be read the candidate is left for the next run.
	already, err := s.sendLog.FindSent(ctx, c.Stage.ID, []string{c.Invoice.ID})
	if err != nil {
		logger.Error("skipping reminder: send log re-check failed", "error", err)
		return outcomeSkipped, nil
	}

	if len(already) > 0 {
		logger.Info("skipping reminder: already sent by another run")
		return outcomeSkipped, nil
	}

	text := s.renderer.Render(c.Stage.ID, c.Customer.DisplayName, c.Invoice.Value, c.Invoice.DueDate, c.Invoice.PaymentLinkURL)

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	messageID, sendErr := s.gateway.Send(sendCtx, c.Customer.Phone, text)

	cancel()

	rec := &SendLogRecord{
		InvoiceID:  c.Invoice.ID,
		CustomerID: c.Customer.ID,
		StageID:    c.Stage.ID,
		DueDate:    c.Invoice.DueDate,
		Value:      c.Invoice.Value,
	}

	result := outcomeSent

	if sendErr != nil {
		rec.Status = LogStatusFailed
		rec.ErrorMessage = new(sendErr.Error())
		result = outcomeFailed

		logger.Error("reminder send failed", "error", sendErr)
	} else {
		rec.Status = LogStatusSent
		rec.GatewayMessageID = new(messageID)

		logger.Info("reminder sent", "gateway_message_id", messageID)
	}

	// The record must land even if the run is being cancelled.
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
	defer cancelWrite()

	if err := s.sendLog.Append(writeCtx, rec); err != nil {
		if errors.Is(err, ErrAlreadySent) {
			logger.Warn("duplicate reminder: a sent record already existed", "gateway_message_id", messageID)
			return result, nil
		}

		if result == outcomeSent {
			logger.Error("reminder delivered but not recorded; the next run will send it again",
				"gateway_message_id", messageID,
				"error", err,
			)
		}

		return result, fmt.Errorf("appending send log: %w", err)
	}

	return result, nil
}
