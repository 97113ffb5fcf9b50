package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeBlocked     = "blocked_business_hours"
	OutcomeOverlapping = "already_running"
	OutcomeFailed      = "failed"
)

var (
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrador_reminder_runs_total",
			Help: "Reminder runs by outcome",
		},
		[]string{"outcome"},
	)

	Sent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrador_reminders_sent_total",
			Help: "Reminders accepted by the messaging gateway",
		},
		[]string{"stage"},
	)

	Failed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrador_reminders_failed_total",
			Help: "Reminder dispatch attempts that failed",
		},
		[]string{"stage"},
	)

	Skipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrador_reminders_skipped_total",
			Help: "Planned reminders skipped because a send was logged after planning",
		},
		[]string{"stage"},
	)

	Candidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cobrador_reminder_candidates",
			Help: "Candidates planned by the most recent run",
		},
	)
)
