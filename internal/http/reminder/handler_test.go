package reminder_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	handler "github.com/MrJamesThe3rd/cobrador/internal/http/reminder"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

var today = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type mocks struct {
	billing   *reminder.MockBilling
	directory *reminder.MockDirectory
	sendLog   *reminder.MockSendLog
	gateway   *reminder.MockGateway
}

func setup(t *testing.T) (*reminder.Service, mocks, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)

	m := mocks{
		billing:   reminder.NewMockBilling(ctrl),
		directory: reminder.NewMockDirectory(ctrl),
		sendLog:   reminder.NewMockSendLog(ctrl),
		gateway:   reminder.NewMockGateway(ctrl),
	}

	svc := reminder.NewService(m.billing, m.directory, m.sendLog, m.gateway, reminder.NewRenderer(""), reminder.Options{
		Location: time.UTC,
		Interval: time.Minute,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return today.Add(10 * time.Hour) },
	})
	t.Cleanup(svc.Close)

	r := chi.NewRouter()
	handler.NewHandler(svc).Routes(r)

	return svc, m, r
}

// oneInvoiceDueToday serves a single invoice for the due_date stage and nothing for the others.
func oneInvoiceDueToday(m mocks) {
	m.billing.EXPECT().
		SearchInvoices(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q reminder.InvoiceQuery) (*reminder.InvoicePage, error) {
			if !q.DueDate.Equal(today) {
				return &reminder.InvoicePage{}, nil
			}

			return &reminder.InvoicePage{Invoices: []reminder.Invoice{{
				ID:         "pay_1",
				CustomerID: "cus_1",
				Value:      decimal.RequireFromString("452.3"),
				DueDate:    today,
			}}}, nil
		}).
		AnyTimes()

	m.directory.EXPECT().
		GetCustomer(gomock.Any(), "cus_1").
		Return(&reminder.Customer{ID: "cus_1", DisplayName: "Maria Silva", Phone: "+5511999990001"}, nil).
		AnyTimes()

	m.sendLog.EXPECT().FindSent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
}

func TestHandler_Run(t *testing.T) {
	_, m, h := setup(t)
	oneInvoiceDueToday(m)

	m.gateway.EXPECT().Send(gomock.Any(), "+5511999990001", gomock.Any()).Return("SM1", nil)
	m.sendLog.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary reminder.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 1, summary.TotalCandidates)
	assert.Equal(t, 1, summary.Sent)
	assert.Len(t, summary.Stages, 8)
}

func TestHandler_Run_NotConfigured(t *testing.T) {
	svc := reminder.NewService(nil, nil, nil, nil, nil, reminder.Options{})
	t.Cleanup(svc.Close)

	r := chi.NewRouter()
	handler.NewHandler(svc).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Dispatch(t *testing.T) {
	svc, m, h := setup(t)
	oneInvoiceDueToday(m)

	release := make(chan struct{})

	m.gateway.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (string, error) {
			<-release
			return "SM1", nil
		})
	m.sendLog.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var ticket struct {
		Planned          int   `json:"planned"`
		EstimatedSeconds int64 `json:"estimated_duration_seconds"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ticket))
	assert.Equal(t, 1, ticket.Planned)
	assert.Zero(t, ticket.EstimatedSeconds)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)

	require.Eventually(t, func() bool {
		return svc.Progress().State == reminder.StateDone
	}, time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var progress reminder.Progress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&progress))
	assert.Equal(t, reminder.StateDone, progress.State)
	assert.Equal(t, 1, progress.Sent)
}

func TestHandler_Preview(t *testing.T) {
	_, m, h := setup(t)
	oneInvoiceDueToday(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Today      string `json:"today"`
		Candidates []struct {
			InvoiceID string `json:"invoice_id"`
			StageID   string `json:"stage_id"`
			Value     string `json:"value"`
		} `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, "2024-03-15", body.Today)
	require.Len(t, body.Candidates, 1)
	assert.Equal(t, "pay_1", body.Candidates[0].InvoiceID)
	assert.Equal(t, "due_date", body.Candidates[0].StageID)
	assert.Equal(t, "452.30", body.Candidates[0].Value)
}

func TestHandler_Stages(t *testing.T) {
	_, _, h := setup(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stages", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stages          []reminder.Stage `json:"stages"`
		IntervalSeconds int64            `json:"interval_seconds"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Len(t, body.Stages, 8)
	assert.Equal(t, "before_10", body.Stages[0].ID)
	assert.Equal(t, int64(60), body.IntervalSeconds)
}

func TestHandler_Log(t *testing.T) {
	type testCase struct {
		name       string
		query      string
		setupMock  func(m mocks)
		wantStatus int
		wantLen    int
	}

	tests := []testCase{
		{
			name:  "Filters",
			query: "?status=failed&stage=after_1&invoice_id=pay_1&start_date=2024-03-01&end_date=2024-03-15&limit=5",
			setupMock: func(m mocks) {
				failed := reminder.LogStatusFailed
				m.sendLog.EXPECT().
					List(gomock.Any(), reminder.LogFilter{
						Status:    &failed,
						StageID:   new("after_1"),
						InvoiceID: new("pay_1"),
						StartDate: new(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
						EndDate:   new(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)),
						Limit:     5,
					}).
					Return([]*reminder.SendLogRecord{{
						InvoiceID:    "pay_1",
						StageID:      "after_1",
						Status:       reminder.LogStatusFailed,
						Value:        decimal.NewFromInt(10),
						ErrorMessage: new("gateway 500"),
					}}, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    1,
		},
		{
			name:  "NoFilters",
			query: "",
			setupMock: func(m mocks) {
				m.sendLog.EXPECT().List(gomock.Any(), reminder.LogFilter{}).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    0,
		},
		{
			name:       "InvalidStatus",
			query:      "?status=pending",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "InvalidDate",
			query:      "?start_date=15/03/2024",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m, h := setup(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/log"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus != http.StatusOK {
				return
			}

			var body []map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Len(t, body, tt.wantLen)
		})
	}
}
