package view

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cobrador/internal/export"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const logPageSize = 500

type SendLogModel struct {
	CommonModel
	svc      *reminder.Service
	exporter *export.Service

	table   table.Model
	records []*reminder.SendLogRecord

	// Filter cycling
	statusFilterIdx int
	stageFilterIdx  int
	timeframe       Timeframe
	stageIDs        []string

	filter  reminder.LogFilter
	loading bool
	notice  string
	err     error
}

func NewSendLogModel(svc *reminder.Service, exporter *export.Service) SendLogModel {
	columns := []table.Column{
		{Title: "When", Width: 17},
		{Title: "Stage", Width: 10},
		{Title: "Invoice", Width: 22},
		{Title: "Customer", Width: 22},
		{Title: "Amount", Width: 14},
		{Title: "Status", Width: 7},
		{Title: "Detail", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header, s.Selected = tableStyles()
	t.SetStyles(s)

	stageIDs := []string{""}
	for _, st := range svc.Schedule().Stages() {
		stageIDs = append(stageIDs, st.ID)
	}

	return SendLogModel{
		svc:      svc,
		exporter: exporter,
		table:    t,
		stageIDs: stageIDs,
		filter:   reminder.LogFilter{Limit: logPageSize},
		loading:  true,
	}
}

func (m SendLogModel) Title() string { return "Send Log" }
func (m SendLogModel) ShortHelp() string {
	return "Esc: back | s: status | g: stage | d: date | r: refresh | x: export zip"
}

func (m SendLogModel) Init() tea.Cmd {
	return m.loadRecordsCmd()
}

func (m SendLogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadLogMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.records = msg.records
		m.refreshTable()

		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.notice = errorStyle(fmt.Sprintf("Export failed: %v", msg.err))
		} else {
			m.notice = activeStyle(fmt.Sprintf("Exported %d record(s) to %s", msg.count, msg.path))
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(m.Resize(msg, 10))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "x":
			return m, m.exportCmd()
		case "r":
			m.loading = true
			return m, m.loadRecordsCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % 3
			m.applyFilter()

			return m, m.loadRecordsCmd()
		case "g":
			m.stageFilterIdx = (m.stageFilterIdx + 1) % len(m.stageIDs)
			m.applyFilter()

			return m, m.loadRecordsCmd()
		case "d":
			m.timeframe = m.timeframe.Next()
			m.applyFilter()

			return m, m.loadRecordsCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m SendLogModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading send log...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	statusLabels := []string{"All", "Sent", "Failed"}

	stageLabel := "All"
	if id := m.stageIDs[m.stageFilterIdx]; id != "" {
		stageLabel = id
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [g] Stage: %s | [d] Date: %s | %d record(s)",
		activeStyle(statusLabels[m.statusFilterIdx]),
		activeStyle(stageLabel),
		activeStyle(m.timeframe.String()),
		len(m.records),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		m.notice,
	))
}

func (m *SendLogModel) applyFilter() {
	switch m.statusFilterIdx {
	case 1:
		m.filter.Status = new(reminder.LogStatusSent)
	case 2:
		m.filter.Status = new(reminder.LogStatusFailed)
	default:
		m.filter.Status = nil
	}

	m.filter.StageID = nil
	if id := m.stageIDs[m.stageFilterIdx]; id != "" {
		m.filter.StageID = new(id)
	}

	m.filter.StartDate = nil
	m.filter.EndDate = nil

	if start, end, ok := TimeframeToDateRange(m.timeframe, time.Now()); ok {
		m.filter.StartDate = &start
		m.filter.EndDate = &end
	}
}

func (m *SendLogModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.records))
	for _, rec := range m.records {
		detail := ""
		switch {
		case rec.ErrorMessage != nil:
			detail = *rec.ErrorMessage
		case rec.GatewayMessageID != nil:
			detail = *rec.GatewayMessageID
		}

		rows = append(rows, table.Row{
			FormatDateTime(rec.CreatedAt),
			rec.StageID,
			rec.InvoiceID,
			rec.CustomerID,
			FormatAmount(rec.Value),
			string(rec.Status),
			detail,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadLogMsg struct {
	records []*reminder.SendLogRecord
	err     error
}

func (m SendLogModel) loadRecordsCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		records, err := m.svc.Log(ctx, filter)

		return loadLogMsg{records: records, err: err}
	}
}

type exportDoneMsg struct {
	path  string
	count int
	err   error
}

// exportCmd writes the records matching the current filter to a zip in the working directory.
func (m SendLogModel) exportCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		records, err := m.exporter.Export(ctx, filter)
		if err != nil {
			return exportDoneMsg{err: err}
		}

		path := fmt.Sprintf("send_log_%s.zip", time.Now().Format("20060102_150405"))

		f, err := os.Create(path)
		if err != nil {
			return exportDoneMsg{err: fmt.Errorf("creating file: %w", err)}
		}
		defer f.Close()

		if err := m.exporter.WriteArchive(f, records); err != nil {
			return exportDoneMsg{err: err}
		}

		return exportDoneMsg{path: path, count: len(records)}
	}
}
