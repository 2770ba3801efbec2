package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the bottom bar reports.
type StatusInfo struct {
	Live         bool
	Tags         int
	Points       int
	Received     uint64
	Dropped      uint64
	ReaderHeight float64
	TagHeight    float64
	SweepDeg     float64
	MaxRange     float64
	Message      string // Transient notice, e.g. export result
	Error        bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s StatusInfo) string {
	status := StyleStatusLive.Render("[LIVE]")
	if !s.Live {
		status = StyleStatusPaused.Render("[PAUSED]")
	}

	info := fmt.Sprintf(" Tags: %d  Points: %d  Frames: %d  Dropped: %d  H: %.1f/%.1fm  Sweep: %ddeg  Range: 0-%.0fm",
		s.Tags, s.Points, s.Received, s.Dropped, s.ReaderHeight, s.TagHeight, int(s.SweepDeg), s.MaxRange)

	content := status + StyleStatusBar.Foreground(ColorGreen).Render(info)
	if s.Message != "" {
		sty := StyleStatusLive
		if s.Error {
			sty = StyleStatusError
		}
		content += "  " + sty.Render(s.Message)
	}

	gap := width - StyleStatusBar.GetHorizontalPadding() - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}

	return StyleStatusBar.Width(width).MaxHeight(1).Render(content + strings.Repeat(" ", gap))
}
