package reminder

import (
	"slices"
	"sync"
	"time"
)

type StageSummary struct {
	StageID     string `json:"stage_id"`
	Label       string `json:"label"`
	DueDate     string `json:"due_date"`
	Found       int    `json:"found"`
	AlreadySent int    `json:"already_sent"`
	Planned     int    `json:"planned"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	Error       string `json:"error,omitempty"`
}

// Summary is the outcome of one run.
type Summary struct {
	TotalCandidates        int            `json:"total_candidates"`
	Sent                   int            `json:"sent"`
	Failed                 int            `json:"failed"`
	Skipped                int            `json:"skipped"`
	NoPhone                int            `json:"no_phone"`
	UnresolvedCustomer     int            `json:"unresolved_customer"`
	BlockedByBusinessHours bool           `json:"blocked_by_business_hours"`
	AlreadyRunning         bool           `json:"already_running"`
	Interrupted            bool           `json:"interrupted"`
	Stages                 []StageSummary `json:"stages"`
	StartedAt              time.Time      `json:"started_at"`
	FinishedAt             *time.Time     `json:"finished_at,omitempty"`
}

func (s *Summary) stage(id string) *StageSummary {
	for i := range s.Stages {
		if s.Stages[i].StageID == id {
			return &s.Stages[i]
		}
	}

	return nil
}

func (s *Summary) clone() *Summary {
	c := *s
	c.Stages = slices.Clone(s.Stages)

	return &c
}

// Plan is the worklist produced by the planning phase of a run.
type Plan struct {
	Today      time.Time   `json:"today"`
	Candidates []Candidate `json:"-"`
	Summary    *Summary    `json:"summary"`
}

// State is the dispatcher state machine position.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSending State = "sending"
	StateWaiting State = "waiting"
	StateDone    State = "done"
)

type Progress struct {
	State      State      `json:"state"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type tracker struct {
	mu sync.Mutex
	p  Progress
}

func (t *tracker) begin(total int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.p = Progress{State: StateRunning, Total: total, StartedAt: &at}
}

func (t *tracker) set(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.p.State = state
}

func (t *tracker) record(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.p.Processed++

	switch o {
	case outcomeSent:
		t.p.Sent++
	case outcomeFailed:
		t.p.Failed++
	case outcomeSkipped:
		t.p.Skipped++
	}
}

func (t *tracker) finish(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.p.State = StateDone
	t.p.FinishedAt = &at
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.p
}
