package reminder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

func TestResolveWindow(t *testing.T) {
	today := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		offset    int
		wantDate  time.Time
		wantClass reminder.StatusClass
	}{
		{
			name:      "TenDaysBefore",
			offset:    -10,
			wantDate:  time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
			wantClass: reminder.StatusPending,
		},
		{
			name:      "DueToday",
			offset:    0,
			wantDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			wantClass: reminder.StatusDueToday,
		},
		{
			name:      "TenDaysAfter",
			offset:    10,
			wantDate:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			wantClass: reminder.StatusOverdue,
		},
		{
			name:      "CrossesMonthBoundary",
			offset:    30,
			wantDate:  time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
			wantClass: reminder.StatusOverdue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := reminder.ResolveWindow(today, reminder.Stage{OffsetDays: tt.offset, ID: "s"})

			assert.True(t, tt.wantDate.Equal(w.DueDate), "got %s", w.DueDate)
			assert.Equal(t, tt.wantClass, w.StatusClass)
			assert.Equal(t, "s", w.Stage.ID)
		})
	}
}

func TestNewSchedule(t *testing.T) {
	tests := []struct {
		name    string
		stages  []reminder.Stage
		wantIDs []string
		wantErr bool
	}{
		{
			name: "SortsByOffset",
			stages: []reminder.Stage{
				{OffsetDays: 5, ID: "after_5"},
				{OffsetDays: -3, ID: "before_3"},
				{OffsetDays: 0, ID: "due_date"},
			},
			wantIDs: []string{"before_3", "due_date", "after_5"},
		},
		{
			name: "DuplicateID",
			stages: []reminder.Stage{
				{OffsetDays: 1, ID: "x"},
				{OffsetDays: 2, ID: "x"},
			},
			wantErr: true,
		},
		{
			name: "DuplicateOffset",
			stages: []reminder.Stage{
				{OffsetDays: 1, ID: "a"},
				{OffsetDays: 1, ID: "b"},
			},
			wantErr: true,
		},
		{
			name:    "MissingID",
			stages:  []reminder.Stage{{OffsetDays: 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := reminder.NewSchedule(tt.stages...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			var ids []string
			for _, st := range s.Stages() {
				ids = append(ids, st.ID)
			}

			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDefaultSchedule(t *testing.T) {
	s := reminder.DefaultSchedule()
	require.Equal(t, 8, s.Len())

	stages := s.Stages()
	assert.Equal(t, "before_10", stages[0].ID)
	assert.Equal(t, "after_30", stages[len(stages)-1].ID)

	st, ok := s.Find("after_5")
	require.True(t, ok)
	assert.Equal(t, 5, st.OffsetDays)

	_, ok = s.Find("after_99")
	assert.False(t, ok)

	// Stages hands out a copy.
	stages[0].ID = "changed"
	assert.Equal(t, "before_10", s.Stages()[0].ID)
}
