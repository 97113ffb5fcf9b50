package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const (
	dbTimeout   = 5 * time.Second
	planTimeout = 2 * time.Minute
)

// FormatAmount formats an invoice value as Brazilian currency.
func FormatAmount(v decimal.Decimal) string {
	return reminder.FormatBRL(v)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func FormatDateTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// FormatDuration renders an estimate like "1h 12m" or "45s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}

	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// PlanCtx allows for the billing API round trips a plan needs.
func PlanCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), planTimeout)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func errorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(s)
}

func tableStyles() (headerBorder, selected lipgloss.Style) {
	headerBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	return headerBorder, selected
}
