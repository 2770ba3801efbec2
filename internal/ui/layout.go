package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout joins the main panel and tag list horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, mainPanel, tagList, statusBar string, width int) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, tagList)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}
