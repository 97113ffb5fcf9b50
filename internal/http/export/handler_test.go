package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cobrador/internal/export"
	handler "github.com/MrJamesThe3rd/cobrador/internal/http/export"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type stubLister struct {
	filter reminder.LogFilter
}

func (s *stubLister) Log(_ context.Context, filter reminder.LogFilter) ([]*reminder.SendLogRecord, error) {
	s.filter = filter

	return []*reminder.SendLogRecord{
		{InvoiceID: "pay_1", StageID: "due_date", Status: reminder.LogStatusSent, Value: decimal.NewFromInt(10)},
		{InvoiceID: "pay_2", StageID: "due_date", Status: reminder.LogStatusFailed, Value: decimal.NewFromInt(20)},
	}, nil
}

func setup() (*stubLister, http.Handler) {
	lister := &stubLister{}

	r := chi.NewRouter()
	handler.NewHandler(export.NewService(lister, time.UTC)).Routes(r)

	return lister, r
}

func TestHandler_Metadata(t *testing.T) {
	lister, r := setup()

	req := httptest.NewRequest(http.MethodGet, "/?start_date=2024-03-01&end_date=2024-03-31&stage=due_date", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records int    `json:"records"`
		Sent    int    `json:"sent"`
		Failed  int    `json:"failed"`
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Records)
	assert.Equal(t, 1, body.Sent)
	assert.Equal(t, 1, body.Failed)
	assert.Contains(t, body.Summary, "due_date")

	require.NotNil(t, lister.filter.EndDate)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *lister.filter.EndDate)
	assert.Equal(t, "due_date", *lister.filter.StageID)
}

func TestHandler_BadFilter(t *testing.T) {
	_, r := setup()

	for _, q := range []string{"?start_date=15/03/2024", "?end_date=x", "?status=queued"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+q, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandler_Download(t *testing.T) {
	_, r := setup()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "send_log_")

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}
