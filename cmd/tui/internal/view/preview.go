package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type PreviewModel struct {
	CommonModel
	svc *reminder.Service

	table   table.Model
	spinner spinner.Model
	plan    *reminder.Plan
	loading bool
	err     error
}

func NewPreviewModel(svc *reminder.Service) PreviewModel {
	columns := []table.Column{
		{Title: "Stage", Width: 10},
		{Title: "Due", Width: 11},
		{Title: "Invoice", Width: 22},
		{Title: "Customer", Width: 28},
		{Title: "Phone", Width: 16},
		{Title: "Amount", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header, s.Selected = tableStyles()
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return PreviewModel{
		svc:     svc,
		table:   t,
		spinner: sp,
		loading: true,
	}
}

func (m PreviewModel) Title() string     { return "Preview Reminder Run" }
func (m PreviewModel) ShortHelp() string { return "Esc: back | r: refresh" }

func (m PreviewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadPlanCmd())
}

func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case previewLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.plan = msg.plan
		m.refreshTable()

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(m.Resize(msg, 12))
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			m.err = nil

			return m, tea.Batch(m.spinner.Tick, m.loadPlanCmd())
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *PreviewModel) refreshTable() {
	if m.plan == nil {
		m.table.SetRows(nil)
		return
	}

	rows := make([]table.Row, 0, len(m.plan.Candidates))
	for _, c := range m.plan.Candidates {
		rows = append(rows, table.Row{
			c.Stage.ID,
			FormatDate(c.Invoice.DueDate),
			c.Invoice.ID,
			c.Customer.DisplayName,
			c.Customer.Phone,
			FormatAmount(c.Invoice.Value),
		})
	}

	m.table.SetRows(rows)
}

func (m PreviewModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render(
			fmt.Sprintf("%s Planning reminder run...", m.spinner.View()),
		)
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			summaryHeader(m.plan.Summary, m.svc.Estimate(len(m.plan.Candidates))),
			lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240")).
				Render(m.table.View()),
			stageLines(m.plan.Summary),
		),
	)
}

func summaryHeader(s *reminder.Summary, estimate time.Duration) string {
	line := fmt.Sprintf("Candidates: %s | No phone: %d | Unresolved customer: %d",
		activeStyle(fmt.Sprint(s.TotalCandidates)), s.NoPhone, s.UnresolvedCustomer)

	if estimate > 0 {
		line += " | Estimated: " + activeStyle(FormatDuration(estimate))
	}

	if s.BlockedByBusinessHours {
		line += "\n" + errorStyle("Outside business hours: a run now would send nothing.")
	}

	return lipgloss.NewStyle().PaddingBottom(1).Render(line)
}

func stageLines(s *reminder.Summary) string {
	var sb strings.Builder

	for _, st := range s.Stages {
		line := fmt.Sprintf("%-10s %s  found %d, already sent %d, planned %d",
			st.StageID, st.DueDate, st.Found, st.AlreadySent, st.Planned)

		if st.Sent+st.Failed+st.Skipped > 0 {
			line += fmt.Sprintf(", sent %d, failed %d, skipped %d", st.Sent, st.Failed, st.Skipped)
		}

		if st.Error != "" {
			line += "  " + errorStyle(st.Error)
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return lipgloss.NewStyle().Faint(true).PaddingTop(1).Render(sb.String())
}

type previewLoadedMsg struct {
	plan *reminder.Plan
	err  error
}

func (m PreviewModel) loadPlanCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := PlanCtx()
		defer cancel()

		plan, err := m.svc.Preview(ctx)

		return previewLoadedMsg{plan: plan, err: err}
	}
}
