package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"atr-radar.klederson.com/internal/ingest"
	"atr-radar.klederson.com/internal/position"
	"atr-radar.klederson.com/internal/radar"
)

// FilterState holds the current filter settings for the tag list.
type FilterState struct {
	ConfirmedOnly bool   // hide tags without a significant point
	Search        string // substring match on the EPC
	Active        bool   // text input mode
}

// Match reports whether a tag passes the filter.
func (f FilterState) Match(t position.TagSnapshot) bool {
	if f.ConfirmedOnly && !t.HasLatest {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToUpper(t.TagID), strings.ToUpper(f.Search)) {
		return false
	}
	return true
}

// Cursor row style: black text on bright green = unmissable highlight
var cursorRowSty = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#000000")).
	Background(ColorMatrixGreen).
	Bold(true)

var hiddenTagSty = lipgloss.NewStyle().
	Foreground(ColorDimGreen)

const linesPerTag = 4 // 3 content + 1 blank

// RenderTagList renders the scrollable tag list panel with cursor and visibility controls.
// The filter bar stays fixed at the top; only the entries scroll.
func RenderTagList(tags []position.TagSnapshot, width, height int, cursorIndex int, hidden map[string]bool, isolate string, filter FilterState) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("TAGS [%d]", len(tags)))
	separator := StyleRadarRing.Render(strings.Repeat("-", innerW))
	headerLines := []string{title, separator, renderFilterBar(filter)}
	headerCount := len(headerLines)

	innerH := height - 2
	if innerH < headerCount+1 {
		innerH = headerCount + 1
	}
	space := innerH - headerCount

	var entries []string
	if len(tags) == 0 {
		entries = append(entries, "",
			StyleHelp.Render(" No tags..."),
			StyleHelp.Render(" Waiting for reader"))
	} else {
		maxVisible := space / linesPerTag
		if maxVisible < 1 {
			maxVisible = 1
		}

		// Viewport start keeps the cursor visible
		viewStart := 0
		if cursorIndex >= maxVisible {
			viewStart = cursorIndex - maxVisible + 1
		}

		for i := viewStart; i < len(tags) && len(entries) < space; i++ {
			t := tags[i]
			entry := renderTagEntry(t, innerW, i == cursorIndex, hidden[t.TagID], t.TagID == isolate)
			for _, l := range entry {
				if len(entries) >= space {
					break
				}
				entries = append(entries, l)
			}
		}
	}

	if len(entries) > space {
		entries = entries[:space]
	}
	for len(entries) < space {
		entries = append(entries, "")
	}

	all := make([]string, 0, innerH)
	all = append(all, headerLines...)
	all = append(all, entries...)

	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(strings.Join(all, "\n"))

	// lipgloss Height() only sets a minimum; clamp to exactly height lines.
	outLines := strings.Split(rendered, "\n")
	if len(outLines) > height {
		outLines = outLines[:height]
	}
	for len(outLines) < height {
		outLines = append(outLines, "")
	}
	return strings.Join(outLines, "\n")
}

func tagLines(t position.TagSnapshot, maxW int) (head, epc, pos string) {
	// Short form only: "TID (ISO/IEC 15963)" shows as TID.
	scheme := "EPC"
	if f := strings.Fields(ingest.LookupEPCScheme(t.TagID)); len(f) > 0 {
		scheme = f[0]
	}

	epc = t.TagID
	if len(epc) > maxW-7 {
		epc = ingest.ShortEPC(t.TagID, maxW-10)
	}

	if t.HasLatest {
		p := t.Latest
		pos = fmt.Sprintf("(%.2f, %.2f) %.1fm %d/%d", p.X, p.Y, p.GroundDistance(), t.Significant, t.Window)
	} else {
		pos = fmt.Sprintf("pending %d/%d", t.Significant, t.Window)
	}
	return scheme, epc, pos
}

func renderTagEntry(t position.TagSnapshot, maxW int, isCursor, isHidden, isIsolated bool) []string {
	scheme, epc, pos := tagLines(t, maxW)

	check := "[x]"
	if isHidden {
		check = "[ ]"
	}
	iso := " "
	if isIsolated {
		iso = "!"
	}

	if isCursor || isHidden {
		sty := hiddenTagSty
		cursor := "  "
		if isCursor {
			sty, cursor = cursorRowSty, ">>"
		}
		return []string{
			sty.Render(truncRaw(fmt.Sprintf("%s %s * %s %s [%s]", cursor, check, radar.Callsign(t.TagID), iso, scheme), maxW)),
			sty.Render(truncRaw("       "+epc, maxW)),
			sty.Render(truncRaw("       "+pos, maxW)),
			"",
		}
	}

	symbol := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Bold(true).Render("*")
	if iso != " " {
		iso = StyleIsolateMarker.Render(iso)
	}
	return []string{
		fmt.Sprintf("   %s %s %s %s %s", StyleCheckOn.Render(check), symbol,
			StyleTagID.Render(radar.Callsign(t.TagID)), iso, StyleTagScheme.Render("["+scheme+"]")),
		"       " + StyleTagScheme.Render(epc),
		"       " + StyleTagPos.Render(pos),
		"",
	}
}

// truncRaw pads or truncates a raw string to exactly w characters.
func truncRaw(s string, w int) string {
	if len(s) > w {
		return s[:w]
	}
	if len(s) < w {
		return s + strings.Repeat(" ", w-len(s))
	}
	return s
}

func renderFilterBar(f FilterState) string {
	bar := " " + toggleStyle(f.ConfirmedOnly).Render("[F:confirmed]")

	if f.Active {
		bar += "  " + toggleStyle(true).Render("/"+f.Search+"_")
	} else if f.Search != "" {
		bar += "  " + toggleStyle(false).Render("/"+f.Search)
	}
	return bar
}

func toggleStyle(on bool) lipgloss.Style {
	if on {
		return lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(ColorDimGreen)
}
