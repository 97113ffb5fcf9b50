package reminder

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type Handler struct {
	svc *reminder.Service
}

func NewHandler(svc *reminder.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/run", h.run)
	r.Post("/dispatch", h.dispatch)
	r.Get("/preview", h.preview)
	r.Get("/progress", h.progress)
	r.Get("/stages", h.stages)
	r.Get("/log", h.log)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// run blocks until the whole run is dispatched. Long schedules should use dispatch.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Run(r.Context())
	if err != nil {
		slog.Error("reminder run failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.Start(r.Context())
	if err != nil {
		if errors.Is(err, reminder.ErrDispatchInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		slog.Error("reminder dispatch failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	status := http.StatusAccepted
	if ticket.Summary != nil && ticket.Summary.BlockedByBusinessHours {
		status = http.StatusOK
	}

	writeJSON(w, status, ticket)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.Preview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toPreviewResponse(plan, h.svc.Estimate(len(plan.Candidates))))
}

func (h *Handler) progress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Progress())
}

func (h *Handler) stages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stagesResponse{
		Stages:          h.svc.Schedule().Stages(),
		IntervalSeconds: int64(h.svc.Interval().Seconds()),
	})
}

func (h *Handler) log(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reminder.LogFilter{}

	if s := q.Get("status"); s != "" {
		status := reminder.LogStatus(s)
		if status != reminder.LogStatusSent && status != reminder.LogStatusFailed {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}

		filter.Status = &status
	}

	if s := q.Get("stage"); s != "" {
		filter.StageID = new(s)
	}

	if s := q.Get("invoice_id"); s != "" {
		filter.InvoiceID = new(s)
	}

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}

		filter.StartDate = new(t)
	}

	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}

		// Inclusive of the whole end day.
		filter.EndDate = new(t.AddDate(0, 0, 1))
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		filter.Limit = n
	}

	records, err := h.svc.Log(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponseList(records))
}
