package main

import (
	"log/slog"
	"os"
	_ "time/tzdata"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cobrador/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/cobrador/internal/bootstrap"
	"github.com/MrJamesThe3rd/cobrador/internal/config"
	"github.com/MrJamesThe3rd/cobrador/internal/database"
	"github.com/MrJamesThe3rd/cobrador/internal/export"
	"github.com/MrJamesThe3rd/cobrador/internal/logging"
	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

type model struct {
	svc      *reminder.Service
	exporter *export.Service

	currentView View
	size        tea.WindowSizeMsg

	previewView view.PreviewModel
	runView     view.RunModel
	logView     view.SendLogModel
}

type View int

const (
	ViewMenu    View = 0
	ViewPreview View = 1
	ViewRun     View = 2
	ViewLog     View = 3
)

func initialModel() (model, func()) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := tea.LogToFile("cobrador-tui.log", "")
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logFile, cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	svc, err := bootstrap.NewReminderService(cfg, db, logger)
	if err != nil {
		slog.Error("failed to build reminder service", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	exporter := export.NewService(svc, loc)

	cleanup := func() {
		svc.Close()
		db.Close()
		logFile.Close()
	}

	return model{
		svc:         svc,
		exporter:    exporter,
		currentView: ViewMenu,
		previewView: view.NewPreviewModel(svc),
		runView:     view.NewRunModel(svc),
		logView:     view.NewSendLogModel(svc, exporter),
	}, cleanup
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewPreview
				m.previewView = view.NewPreviewModel(m.svc)

				return m, tea.Batch(m.previewView.Init(), m.replaySize())
			case "2":
				m.currentView = ViewRun
				m.runView = view.NewRunModel(m.svc)

				return m, tea.Batch(m.runView.Init(), m.replaySize())
			case "3":
				m.currentView = ViewLog
				m.logView = view.NewSendLogModel(m.svc, m.exporter)

				return m, tea.Batch(m.logView.Init(), m.replaySize())
			}
		}
	case tea.WindowSizeMsg:
		m.size = msg
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewPreview:
		var newModel tea.Model
		newModel, cmd = m.previewView.Update(msg)
		m.previewView = newModel.(view.PreviewModel)
	case ViewRun:
		var newModel tea.Model
		newModel, cmd = m.runView.Update(msg)
		m.runView = newModel.(view.RunModel)
	case ViewLog:
		var newModel tea.Model
		newModel, cmd = m.logView.Update(msg)
		m.logView = newModel.(view.SendLogModel)
	}

	return m, cmd
}

// replaySize hands a freshly built screen the last known window size.
func (m model) replaySize() tea.Cmd {
	if m.size.Width == 0 {
		return nil
	}

	size := m.size

	return func() tea.Msg { return size }
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		progress := m.svc.Progress()

		status := ""
		if progress.State != reminder.StateIdle && progress.State != reminder.StateDone {
			status = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(
				"\n\nDispatch in progress: " + string(progress.State),
			)
		}

		return lipgloss.NewStyle().Padding(2).Render(
			"Cobrador\n\n" +
				"1. Preview Reminder Run\n" +
				"2. Run Reminders Now\n" +
				"3. Send Log\n\n" +
				"q. Quit" + status,
		)
	case ViewPreview:
		return m.previewView.View()
	case ViewRun:
		return m.runView.View()
	case ViewLog:
		return m.logView.View()
	}

	return "Unknown View"
}

func main() {
	m, cleanup := initialModel()
	defer cleanup()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
