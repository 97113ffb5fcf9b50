package reminder

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/cobrador/internal/metrics"
)

type stageBatch struct {
	stage    Stage
	invoices []Invoice
}

// plan scans every stage in schedule order, drops invoices already reminded
// for that stage, resolves customers once per run and builds the worklist.
// Stage and customer failures are logged and folded into the summary.
func (s *Service) plan(ctx context.Context, now time.Time) *Plan {
	today := startOfDay(now.In(s.loc))
	summary := &Summary{
		StartedAt: now,
		Stages:    make([]StageSummary, 0, s.schedule.Len()),
	}

	var batches []stageBatch

	for _, stage := range s.schedule.Stages() {
		w := ResolveWindow(today, stage)
		st := StageSummary{
			StageID: stage.ID,
			Label:   stage.Label,
			DueDate: w.DueDate.Format(time.DateOnly),
		}

		invoices, err := s.fetchWindow(ctx, w)
		if err != nil {
			s.logger.Error("skipping stage: invoice search failed",
				"stage", stage.ID,
				"due_date", st.DueDate,
				"error", err,
			)

			st.Error = err.Error()
			summary.Stages = append(summary.Stages, st)

			continue
		}

		st.Found = len(invoices)

		fresh, err := s.dedup(ctx, stage, invoices)
		if err != nil {
			s.logger.Error("skipping stage: send log lookup failed",
				"stage", stage.ID,
				"error", err,
			)

			st.Error = err.Error()
			summary.Stages = append(summary.Stages, st)

			continue
		}

		st.AlreadySent = len(invoices) - len(fresh)
		summary.Stages = append(summary.Stages, st)

		if len(fresh) > 0 {
			batches = append(batches, stageBatch{stage: stage, invoices: fresh})
		}
	}

	customers := s.resolveCustomers(ctx, customerIDs(batches))

	var candidates []Candidate

	for _, b := range batches {
		st := summary.stage(b.stage.ID)

		for _, inv := range b.invoices {
			cust, ok := customers[inv.CustomerID]
			if !ok {
				summary.UnresolvedCustomer++
				continue
			}

			if strings.TrimSpace(cust.Phone) == "" {
				s.logger.Debug("dropping invoice: customer has no phone",
					"stage", b.stage.ID,
					"invoice_id", inv.ID,
					"customer_id", inv.CustomerID,
				)

				summary.NoPhone++

				continue
			}

			candidates = append(candidates, Candidate{Invoice: inv, Customer: cust, Stage: b.stage})
			st.Planned++
		}
	}

	summary.TotalCandidates = len(candidates)
	metrics.Candidates.Set(float64(len(candidates)))

	s.logger.Info("reminder run planned",
		"today", today.Format(time.DateOnly),
		"candidates", len(candidates),
		"no_phone", summary.NoPhone,
		"unresolved_customer", summary.UnresolvedCustomer,
	)

	return &Plan{Today: today, Candidates: candidates, Summary: summary}
}

// fetchWindow pages through the billing provider for one stage window.
func (s *Service) fetchWindow(ctx context.Context, w Window) ([]Invoice, error) {
	var invoices []Invoice

	seen := make(map[string]struct{})

	for page := 0; page < s.maxPages; page++ {
		res, err := s.billing.SearchInvoices(ctx, InvoiceQuery{
			DueDate: w.DueDate,
			Status:  w.StatusClass,
			Offset:  page * s.pageSize,
			Limit:   s.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("searching invoices due %s: %w", w.DueDate.Format(time.DateOnly), err)
		}

		for _, inv := range res.Invoices {
			if !sameDay(inv.DueDate, w.DueDate) {
				continue
			}

			if _, dup := seen[inv.ID]; dup {
				continue
			}

			seen[inv.ID] = struct{}{}
			invoices = append(invoices, inv)
		}

		// Pages can come back empty after off-window rows are dropped, so
		// only HasMore ends the scan.
		if !res.HasMore {
			return invoices, nil
		}
	}

	s.logger.Warn("invoice search truncated at page limit",
		"stage", w.Stage.ID,
		"max_pages", s.maxPages,
	)

	return invoices, nil
}

// dedup removes invoices with a sent record for this exact stage.
func (s *Service) dedup(ctx context.Context, stage Stage, invoices []Invoice) ([]Invoice, error) {
	if len(invoices) == 0 {
		return nil, nil
	}

	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}

	sent := make(map[string]struct{})

	for chunk := range slices.Chunk(ids, s.dedupBatch) {
		found, err := s.sendLog.FindSent(ctx, stage.ID, chunk)
		if err != nil {
			return nil, fmt.Errorf("finding sent reminders: %w", err)
		}

		for _, id := range found {
			sent[id] = struct{}{}
		}
	}

	fresh := make([]Invoice, 0, len(invoices))

	for _, inv := range invoices {
		if _, done := sent[inv.ID]; done {
			continue
		}

		fresh = append(fresh, inv)
	}

	return fresh, nil
}

// resolveCustomers looks each customer up once, concurrently. Customers that
// fail to resolve are absent from the result.
func (s *Service) resolveCustomers(ctx context.Context, ids []string) map[string]Customer {
	var (
		mu       sync.Mutex
		resolved = make(map[string]Customer, len(ids))
		g        errgroup.Group
	)

	g.SetLimit(s.lookupConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			c, err := s.directory.GetCustomer(ctx, id)
			if err == nil && c == nil {
				err = ErrCustomerNotFound
			}

			if err != nil {
				s.logger.Warn("dropping customer: lookup failed",
					"customer_id", id,
					"error", err,
				)

				return nil
			}

			if c.ID == "" {
				c.ID = id
			}

			mu.Lock()
			resolved[id] = *c
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return resolved
}

func customerIDs(batches []stageBatch) []string {
	seen := make(map[string]struct{})

	var ids []string

	for _, b := range batches {
		for _, inv := range b.invoices {
			if _, ok := seen[inv.CustomerID]; ok {
				continue
			}

			seen[inv.CustomerID] = struct{}{}
			ids = append(ids, inv.CustomerID)
		}
	}

	return ids
}
