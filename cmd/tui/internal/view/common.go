package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

const minTableHeight = 5

// CommonModel tracks the terminal size shared by every screen.
type CommonModel struct {
	Width  int
	Height int
}

// Resize stores the new window size and returns the rows left for a table
// once chrome rows of headers and help are reserved.
func (c *CommonModel) Resize(msg tea.WindowSizeMsg, chrome int) int {
	c.Width = msg.Width
	c.Height = msg.Height

	return max(msg.Height-chrome, minTableHeight)
}

// BackMsg returns the UI to the main menu.
type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}
