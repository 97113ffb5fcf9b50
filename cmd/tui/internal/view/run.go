package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type runState int

const (
	runStatePlanning runState = iota
	runStateConfirm
	runStateStarting
	runStateDispatching
	runStateResult
)

const (
	progressPoll = time.Second
	maxBarWidth  = 60
)

type RunModel struct {
	CommonModel
	svc *reminder.Service

	state    runState
	plan     *reminder.Plan
	ticket   *reminder.Ticket
	snapshot reminder.Progress
	form     *huh.Form
	spinner  spinner.Model
	bar      progress.Model
	notice   string
	err      error
}

func NewRunModel(svc *reminder.Service) RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return RunModel{
		svc:     svc,
		state:   runStatePlanning,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
	}
}

func (m RunModel) Title() string { return "Run Reminders Now" }

func (m RunModel) ShortHelp() string {
	switch m.state {
	case runStateDispatching:
		return "Esc: back (sending continues in background)"
	case runStateResult:
		return "Esc: back to menu"
	}

	return "Esc: back | Enter: confirm"
}

func (m RunModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.planCmd())
}

func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}
	case tea.WindowSizeMsg:
		m.Resize(msg, 0)
		m.bar.Width = min(max(m.Width-4, 20), maxBarWidth)

		return m, nil
	}

	switch m.state {
	case runStatePlanning:
		return m.updatePlanning(msg)
	case runStateConfirm:
		return m.updateConfirm(msg)
	case runStateStarting:
		return m.updateStarting(msg)
	case runStateDispatching:
		return m.updateDispatching(msg)
	}

	return m, nil
}

func (m RunModel) updatePlanning(msg tea.Msg) (tea.Model, tea.Cmd) {
	loaded, ok := msg.(previewLoadedMsg)
	if !ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	if loaded.err != nil {
		m.err = loaded.err
		m.state = runStateResult

		return m, nil
	}

	m.plan = loaded.plan

	switch {
	case m.plan.Summary.BlockedByBusinessHours:
		m.notice = "Outside business hours. Nothing will be sent right now."
		m.state = runStateResult

		return m, nil
	case len(m.plan.Candidates) == 0:
		m.notice = "Nothing to send: every eligible invoice was already reminded for its stage."
		m.state = runStateResult

		return m, nil
	}

	m.form = m.buildConfirmForm()
	m.state = runStateConfirm

	return m, m.form.Init()
}

func (m RunModel) buildConfirmForm() *huh.Form {
	n := len(m.plan.Candidates)
	confirm := false

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Send %d reminder(s) now?", n)).
				Description(fmt.Sprintf("Estimated duration: %s at one message every %s.",
					FormatDuration(m.svc.Estimate(n)), FormatDuration(m.svc.Interval()))).
				Affirmative("Send").
				Negative("Cancel").
				Value(&confirm),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m RunModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.form.GetBool("confirm") {
		return m, Back
	}

	m.state = runStateStarting

	return m, tea.Batch(m.spinner.Tick, m.startCmd())
}

func (m RunModel) updateStarting(msg tea.Msg) (tea.Model, tea.Cmd) {
	started, ok := msg.(runStartedMsg)
	if !ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	if started.err != nil {
		m.err = started.err
		if errors.Is(started.err, reminder.ErrDispatchInProgress) {
			m.err = nil
			m.notice = "A dispatch is already running. Follow it from here."
			m.state = runStateDispatching

			return m, pollProgress()
		}

		m.state = runStateResult

		return m, nil
	}

	m.ticket = started.ticket

	if m.ticket.Summary != nil && m.ticket.Summary.BlockedByBusinessHours {
		m.notice = "Outside business hours. Nothing was sent."
		m.state = runStateResult

		return m, nil
	}

	m.state = runStateDispatching

	return m, pollProgress()
}

func (m RunModel) updateDispatching(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressTickMsg:
		m.snapshot = m.svc.Progress()

		if m.snapshot.State == reminder.StateDone {
			m.state = runStateResult
			return m, nil
		}

		percent := 0.0
		if m.snapshot.Total > 0 {
			percent = float64(m.snapshot.Processed) / float64(m.snapshot.Total)
		}

		return m, tea.Batch(m.bar.SetPercent(percent), pollProgress())

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}

		return m, cmd
	}

	return m, nil
}

func (m RunModel) View() string {
	style := lipgloss.NewStyle().Padding(1)

	switch m.state {
	case runStatePlanning:
		return style.Render(fmt.Sprintf("%s Planning reminder run...", m.spinner.View()))

	case runStateConfirm:
		return style.Render(lipgloss.JoinVertical(lipgloss.Left,
			summaryHeader(m.plan.Summary, m.svc.Estimate(len(m.plan.Candidates))),
			m.form.View(),
		))

	case runStateStarting:
		return style.Render(fmt.Sprintf("%s Starting dispatch...", m.spinner.View()))

	case runStateDispatching:
		p := m.snapshot

		return style.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.notice,
			fmt.Sprintf("State: %s", activeStyle(string(p.State))),
			"",
			m.bar.View(),
			"",
			fmt.Sprintf("%d / %d processed | sent %d | failed %d | skipped %d",
				p.Processed, p.Total, p.Sent, p.Failed, p.Skipped),
		))

	case runStateResult:
		return m.viewResult()
	}

	return ""
}

func (m RunModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(1)

	if m.err != nil {
		return style.Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.notice != "" && m.snapshot.State != reminder.StateDone {
		return style.Render(m.notice)
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render("Dispatch Complete!")

	p := m.snapshot

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		fmt.Sprintf("Sent:    %d", p.Sent),
		fmt.Sprintf("Failed:  %d", p.Failed),
		fmt.Sprintf("Skipped: %d", p.Skipped),
		"",
		"Failed attempts are retried on the next run. See the send log for details.",
	))
}

type runStartedMsg struct {
	ticket *reminder.Ticket
	err    error
}

type progressTickMsg struct{}

func pollProgress() tea.Cmd {
	return tea.Tick(progressPoll, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func (m RunModel) planCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := PlanCtx()
		defer cancel()

		plan, err := m.svc.Preview(ctx)

		return previewLoadedMsg{plan: plan, err: err}
	}
}

// startCmd plans again and hands the sends to the service's background dispatcher.
func (m RunModel) startCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := PlanCtx()
		defer cancel()

		ticket, err := m.svc.Start(ctx)

		return runStartedMsg{ticket: ticket, err: err}
	}
}
