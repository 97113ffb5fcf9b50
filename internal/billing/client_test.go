package billing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cobrador/internal/billing"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

func newClient(ts *httptest.Server) *billing.Client {
	return billing.New(ts.URL+"/", "test-key",
		billing.WithHTTPClient(ts.Client()),
		billing.WithLocation(time.UTC),
		billing.WithRetry(2, time.Millisecond),
	)
}

func TestClient_SearchInvoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("access_token"))

		q := r.URL.Query()
		assert.Equal(t, "2024-03-05", q.Get("dueDate[ge]"))
		assert.Equal(t, "2024-03-05", q.Get("dueDate[le]"))
		assert.Equal(t, "OVERDUE", q.Get("status"))
		assert.Equal(t, "100", q.Get("offset"))
		assert.Equal(t, "50", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hasMore": true,
			"data": [
				{"id": "pay_1", "customer": "cus_1", "value": 452.3, "dueDate": "2024-03-05", "status": "OVERDUE", "invoiceUrl": "https://pay.example/1"},
				{"id": "pay_2", "customer": "cus_2", "value": 10, "dueDate": "2024-03-06", "status": "OVERDUE"}
			]
		}`))
	}))
	defer ts.Close()

	page, err := newClient(ts).SearchInvoices(context.Background(), reminder.InvoiceQuery{
		DueDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:  reminder.StatusOverdue,
		Offset:  100,
		Limit:   50,
	})
	require.NoError(t, err)

	assert.True(t, page.HasMore)
	require.Len(t, page.Invoices, 1)

	inv := page.Invoices[0]
	assert.Equal(t, "pay_1", inv.ID)
	assert.Equal(t, "cus_1", inv.CustomerID)
	assert.Equal(t, "452.3", inv.Value.String())
	assert.Equal(t, reminder.StatusOverdue, inv.Status)
	assert.Equal(t, "https://pay.example/1", inv.PaymentLinkURL)
	assert.True(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Equal(inv.DueDate))
}

func TestClient_SearchInvoices_PendingStatus(t *testing.T) {
	for _, class := range []reminder.StatusClass{reminder.StatusPending, reminder.StatusDueToday} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "PENDING", r.URL.Query().Get("status"))
			w.Write([]byte(`{"hasMore": false, "data": []}`))
		}))

		_, err := newClient(ts).SearchInvoices(context.Background(), reminder.InvoiceQuery{
			DueDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Status:  class,
			Limit:   10,
		})
		require.NoError(t, err)

		ts.Close()
	}
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantAttempts int32
		wantStatus   int
	}{
		{name: "RecoversFrom5xx", statuses: []int{502, 503, 200}, wantAttempts: 3},
		{name: "RetriesTooManyRequests", statuses: []int{429, 200}, wantAttempts: 2},
		{name: "GivesUpAfterMaxRetries", statuses: []int{500, 500, 500, 500}, wantAttempts: 3, wantStatus: 500},
		{name: "ClientErrorIsPermanent", statuses: []int{401, 200}, wantAttempts: 1, wantStatus: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]

				w.WriteHeader(status)

				if status == http.StatusOK {
					w.Write([]byte(`{"hasMore": false, "data": []}`))
					return
				}

				w.Write([]byte(`{"errors":[{"code":"x"}]}`))
			}))
			defer ts.Close()

			_, err := newClient(ts).SearchInvoices(context.Background(), reminder.InvoiceQuery{
				DueDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				Limit:   10,
			})

			assert.Equal(t, tt.wantAttempts, attempts.Load())

			if tt.wantStatus == 0 {
				assert.NoError(t, err)
				return
			}

			var apiErr *billing.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
		})
	}
}

func TestClient_GetCustomer(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantPhone string
		wantName  string
		wantErr   error
	}{
		{
			name:      "MobilePhone",
			status:    200,
			body:      `{"id":"cus_1","name":"Maria Silva","mobilePhone":"11999990001","phone":"1133330000"}`,
			wantPhone: "11999990001",
			wantName:  "Maria Silva",
		},
		{
			name:      "FallsBackToPhone",
			status:    200,
			body:      `{"id":"cus_1","name":"Maria Silva","mobilePhone":"","phone":"1133330000"}`,
			wantPhone: "1133330000",
			wantName:  "Maria Silva",
		},
		{
			name:      "DeletedHasNoPhone",
			status:    200,
			body:      `{"id":"cus_1","name":"Maria Silva","mobilePhone":"11999990001","deleted":true}`,
			wantPhone: "",
			wantName:  "Maria Silva",
		},
		{
			name:    "NotFound",
			status:  404,
			body:    `{"errors":[]}`,
			wantErr: reminder.ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v3/customers/cus_1", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			got, err := newClient(ts).GetCustomer(context.Background(), "cus_1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "cus_1", got.ID)
			assert.Equal(t, tt.wantName, got.DisplayName)
			assert.Equal(t, tt.wantPhone, got.Phone)
		})
	}
}

func TestClient_RateLimit(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()

		w.Write([]byte(`{"id":"cus_1","name":"Maria Silva","mobilePhone":"11999990001"}`))
	}))
	defer ts.Close()

	client := billing.New(ts.URL, "test-key",
		billing.WithHTTPClient(ts.Client()),
		billing.WithRateLimit(20),
	)

	for range 3 {
		_, err := client.GetCustomer(context.Background(), "cus_1")
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, times, 3)
	// 20 req/s with a burst of one spaces requests 50ms apart.
	assert.GreaterOrEqual(t, times[2].Sub(times[0]), 90*time.Millisecond)
}
