package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cobrador/internal/export"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.metadata)
	r.Get("/download", h.download)
}

type exportMetadataResponse struct {
	Records int    `json:"records"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Summary string `json:"summary"`
}

// parseFilter reads start_date and end_date (YYYY-MM-DD, end inclusive) plus optional status and stage.
func parseFilter(r *http.Request) (reminder.LogFilter, error) {
	q := r.URL.Query()
	filter := reminder.LogFilter{}

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, errors.New("invalid start_date")
		}

		filter.StartDate = new(t)
	}

	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, errors.New("invalid end_date")
		}

		filter.EndDate = new(t.AddDate(0, 0, 1))
	}

	if s := q.Get("status"); s != "" {
		status := reminder.LogStatus(s)
		if status != reminder.LogStatusSent && status != reminder.LogStatusFailed {
			return filter, errors.New("invalid status")
		}

		filter.Status = &status
	}

	if s := q.Get("stage"); s != "" {
		filter.StageID = new(s)
	}

	return filter, nil
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.svc.Export(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := exportMetadataResponse{
		Records: len(records),
		Summary: h.svc.GenerateSummary(records),
	}

	for _, rec := range records {
		if rec.Status == reminder.LogStatusSent {
			resp.Sent++
		} else {
			resp.Failed++
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.svc.Export(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"send_log_%s.zip\"", time.Now().Format("20060102")))

	if err := h.svc.WriteArchive(w, records); err != nil {
		slog.Error("failed to write export archive", "error", err)
	}
}
