package reminder_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func invoice(id, customerID string, due time.Time) reminder.Invoice {
	return reminder.Invoice{
		ID:         id,
		CustomerID: customerID,
		Value:      decimal.RequireFromString("150.00"),
		DueDate:    due,
	}
}

// fakeBilling serves invoices keyed by due date, paged by offset.
type fakeBilling struct {
	mu       sync.Mutex
	invoices map[string][]reminder.Invoice
	errs     map[string]error
	queries  []reminder.InvoiceQuery
}

func newFakeBilling(invoices ...reminder.Invoice) *fakeBilling {
	b := &fakeBilling{
		invoices: make(map[string][]reminder.Invoice),
		errs:     make(map[string]error),
	}

	for _, inv := range invoices {
		key := inv.DueDate.Format(time.DateOnly)
		b.invoices[key] = append(b.invoices[key], inv)
	}

	return b
}

func (b *fakeBilling) SearchInvoices(_ context.Context, q reminder.InvoiceQuery) (*reminder.InvoicePage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queries = append(b.queries, q)

	key := q.DueDate.Format(time.DateOnly)
	if err := b.errs[key]; err != nil {
		return nil, err
	}

	all := b.invoices[key]
	if q.Offset >= len(all) {
		return &reminder.InvoicePage{}, nil
	}

	end := min(q.Offset+q.Limit, len(all))

	return &reminder.InvoicePage{
		Invoices: all[q.Offset:end],
		HasMore:  end < len(all),
	}, nil
}

type fakeDirectory struct {
	mu        sync.Mutex
	customers map[string]reminder.Customer
	errs      map[string]error
	calls     map[string]int
}

func newFakeDirectory(customers ...reminder.Customer) *fakeDirectory {
	d := &fakeDirectory{
		customers: make(map[string]reminder.Customer),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}

	for _, c := range customers {
		d.customers[c.ID] = c
	}

	return d
}

func (d *fakeDirectory) GetCustomer(_ context.Context, id string) (*reminder.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[id]++

	if err := d.errs[id]; err != nil {
		return nil, err
	}

	c, ok := d.customers[id]
	if !ok {
		return nil, reminder.ErrCustomerNotFound
	}

	return &c, nil
}

// fakeSendLog mirrors the store's unique index on sent (invoice, stage) pairs.
type fakeSendLog struct {
	mu         sync.Mutex
	records    []*reminder.SendLogRecord
	findErr    error
	appendErr  error
	batchSizes []int

	// onFind runs before each lookup, outside the lock; a non-nil error fails it.
	onFind func(invoiceIDs []string) error
}

func (l *fakeSendLog) FindSent(_ context.Context, stageID string, invoiceIDs []string) ([]string, error) {
	if l.onFind != nil {
		if err := l.onFind(invoiceIDs); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.batchSizes = append(l.batchSizes, len(invoiceIDs))

	if l.findErr != nil {
		return nil, l.findErr
	}

	var found []string

	for _, id := range invoiceIDs {
		if l.sentLocked(id, stageID) {
			found = append(found, id)
		}
	}

	return found, nil
}

func (l *fakeSendLog) Append(_ context.Context, rec *reminder.SendLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.appendErr != nil {
		return l.appendErr
	}

	if rec.Status == reminder.LogStatusSent && l.sentLocked(rec.InvoiceID, rec.StageID) {
		return reminder.ErrAlreadySent
	}

	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	l.records = append(l.records, rec)

	return nil
}

func (l *fakeSendLog) List(_ context.Context, filter reminder.LogFilter) ([]*reminder.SendLogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*reminder.SendLogRecord

	for _, r := range l.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}

		if filter.StageID != nil && r.StageID != *filter.StageID {
			continue
		}

		out = append(out, r)
	}

	return out, nil
}

func (l *fakeSendLog) sentLocked(invoiceID, stageID string) bool {
	for _, r := range l.records {
		if r.InvoiceID == invoiceID && r.StageID == stageID && r.Status == reminder.LogStatusSent {
			return true
		}
	}

	return false
}

func (l *fakeSendLog) byStatus(status reminder.LogStatus) []*reminder.SendLogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*reminder.SendLogRecord

	for _, r := range l.records {
		if r.Status == status {
			out = append(out, r)
		}
	}

	return out
}

type sentMessage struct {
	phone string
	text  string
	at    time.Time
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []sentMessage
	fail   map[string]error
	onSend func(n int)
}

func (g *fakeGateway) Send(_ context.Context, phone, text string) (string, error) {
	g.mu.Lock()
	g.sent = append(g.sent, sentMessage{phone: phone, text: text, at: time.Now()})
	n := len(g.sent)
	hook := g.onSend
	err := g.fail[phone]
	g.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("SM%03d", n), nil
}

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]sentMessage(nil), g.sent...)
}
