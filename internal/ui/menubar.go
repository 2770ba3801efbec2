package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"atr-radar.klederson.com/internal/config"
)

// RenderMenuBar renders the top menu bar. source names the event feed
// (reader URL or "demo").
func RenderMenuBar(width int, source string, live, connected bool) string {
	title := fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion)

	keys := []struct{ key, label string }{
		{"S", "tart"},
		{"P", "ause"},
		{"M", "ap"},
		{"E", "xport"},
		{"C", "lear"},
		{"Q", "uit"},
	}

	menu := ""
	for _, k := range keys {
		menu += "  " + StyleMenuKey.Render("["+k.key+"]") + StyleMenuLabel.Render(k.label)
	}

	status := StyleStatusLive.Render("LIVE")
	if !live {
		status = StyleStatusPaused.Render("PAUSED")
	}
	link := StyleStatusLive.Render("ONLINE")
	if !connected {
		link = StyleStatusError.Render("OFFLINE")
	}

	sourceInfo := StyleMenuLabel.Render(fmt.Sprintf("Source: %s", source))

	left := StyleMenuKey.Render(title) + menu
	right := status + "  " + link + "  " + sourceInfo + " "

	// Width includes the style padding, so the fill is measured against the inner width.
	gap := width - StyleMenuBar.GetHorizontalPadding() - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return StyleMenuBar.Width(width).MaxHeight(1).Render(left + strings.Repeat(" ", gap) + right)
}
