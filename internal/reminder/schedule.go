package reminder

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Stage is one entry of the reminder schedule. Negative offsets are days before the due date.
type Stage struct {
	OffsetDays int    `json:"offset_days"`
	ID         string `json:"stage_id"`
	Label      string `json:"label"`
}

// Schedule is an immutable list of stages ordered by offset, earliest first.
type Schedule struct {
	stages []Stage
}

func NewSchedule(stages ...Stage) (Schedule, error) {
	seenIDs := make(map[string]struct{}, len(stages))
	seenOffsets := make(map[int]struct{}, len(stages))

	for _, st := range stages {
		if st.ID == "" {
			return Schedule{}, fmt.Errorf("stage with offset %d has no id", st.OffsetDays)
		}

		if _, dup := seenIDs[st.ID]; dup {
			return Schedule{}, fmt.Errorf("duplicate stage id %q", st.ID)
		}

		if _, dup := seenOffsets[st.OffsetDays]; dup {
			return Schedule{}, fmt.Errorf("duplicate stage offset %d", st.OffsetDays)
		}

		seenIDs[st.ID] = struct{}{}
		seenOffsets[st.OffsetDays] = struct{}{}
	}

	sorted := slices.Clone(stages)
	slices.SortStableFunc(sorted, func(a, b Stage) int {
		return cmp.Compare(a.OffsetDays, b.OffsetDays)
	})

	return Schedule{stages: sorted}, nil
}

var defaultStages = []Stage{
	{OffsetDays: -10, ID: "before_10", Label: "10 dias antes do vencimento"},
	{OffsetDays: -3, ID: "before_3", Label: "3 dias antes do vencimento"},
	{OffsetDays: 0, ID: "due_date", Label: "Dia do vencimento"},
	{OffsetDays: 1, ID: "after_1", Label: "1 dia após o vencimento"},
	{OffsetDays: 5, ID: "after_5", Label: "5 dias após o vencimento"},
	{OffsetDays: 10, ID: "after_10", Label: "10 dias após o vencimento"},
	{OffsetDays: 20, ID: "after_20", Label: "20 dias após o vencimento"},
	{OffsetDays: 30, ID: "after_30", Label: "30 dias após o vencimento"},
}

func DefaultSchedule() Schedule {
	s, err := NewSchedule(defaultStages...)
	if err != nil {
		panic(err)
	}

	return s
}

// Stages returns a copy of the ordered stages.
func (s Schedule) Stages() []Stage {
	return slices.Clone(s.stages)
}

func (s Schedule) Len() int {
	return len(s.stages)
}

func (s Schedule) Find(id string) (Stage, bool) {
	for _, st := range s.stages {
		if st.ID == id {
			return st, true
		}
	}

	return Stage{}, false
}

// Window is the provider query for one stage on one day.
type Window struct {
	Stage       Stage
	DueDate     time.Time
	StatusClass StatusClass
}

// ResolveWindow returns the due date a stage targets on the given day. A stage
// N days before the due date looks at invoices due N days from today.
func ResolveWindow(today time.Time, stage Stage) Window {
	day := startOfDay(today)

	class := StatusPending

	switch {
	case stage.OffsetDays > 0:
		class = StatusOverdue
	case stage.OffsetDays == 0:
		class = StatusDueToday
	}

	return Window{
		Stage:       stage,
		DueDate:     day.AddDate(0, 0, -stage.OffsetDays),
		StatusClass: class,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
