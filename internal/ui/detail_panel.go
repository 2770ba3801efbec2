package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"atr-radar.klederson.com/internal/ingest"
	"atr-radar.klederson.com/internal/position"
)

// RenderDetailPanel renders the tag detail overlay that replaces the radar
// area. xs and ys are the tag's recent X/Y history, oldest first.
func RenderDetailPanel(t position.TagSnapshot, xs, ys []float64, width, height int, maxRange float64) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := StylePanelTitle.Render("TAG DETAIL")
	escHint := StyleHelp.Render("[ESC]")
	titleLine := title + strings.Repeat(" ", max(0, innerW-lipgloss.Width(title)-lipgloss.Width(escHint))) + escHint

	sep := StyleRadarRing.Render(strings.Repeat("-", innerW))

	lines := []string{titleLine, sep, ""}

	labelSty := lipgloss.NewStyle().Foreground(ColorMidGreen)
	valSty := lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true)

	scheme := ingest.LookupEPCScheme(t.TagID)
	if scheme == "" {
		scheme = "unknown"
	}
	epc := t.TagID
	if len(epc) > innerW-14 {
		epc = ingest.ShortEPC(t.TagID, innerW-16)
	}

	p := t.Latest
	fields := []struct{ label, value string }{
		{"EPC", epc},
		{"Scheme", scheme},
	}
	if t.HasLatest {
		fields = append(fields,
			struct{ label, value string }{"Position", fmt.Sprintf("X %.2f  Y %.2f  Z %.2f m", p.X, p.Y, p.Z)},
			struct{ label, value string }{"Distance", fmt.Sprintf("%.2f m", p.GroundDistance())},
			struct{ label, value string }{"Bearing", fmt.Sprintf("%.0fdeg %s", p.Angle()*180/math.Pi, angleToDir(p.Angle()))},
			struct{ label, value string }{"Angles", fmt.Sprintf("az %.1f  el %.1f", p.Azimuth, p.Elevation)},
		)
	} else {
		fields = append(fields, struct{ label, value string }{"Position", "pending"})
	}
	fields = append(fields,
		struct{ label, value string }{"Points", fmt.Sprintf("%d confirmed / %d window / %d logged", t.Significant, t.Window, t.Logged)},
		struct{ label, value string }{"First", t.FirstSeen.Format("15:04:05.000")},
		struct{ label, value string }{"Last", formatLastSeen(t.LastSeen)},
	)

	for _, f := range fields {
		label := labelSty.Render(fmt.Sprintf("  %-10s", f.label))
		lines = append(lines, label+valSty.Render(f.value))
	}

	lines = append(lines, "")

	if t.HasLatest {
		barWidth := innerW - 22
		if barWidth < 10 {
			barWidth = 10
		}
		bar := renderRangeBar(p.GroundDistance(), maxRange, barWidth)
		lines = append(lines, labelSty.Render("  Range  ")+bar+valSty.Render(fmt.Sprintf(" %.1fm", p.GroundDistance())))
		lines = append(lines, "")
	}

	sparkW := innerW - 8
	if sparkW < 10 {
		sparkW = 10
	}
	sparkSty := lipgloss.NewStyle().Foreground(ColorGreen)
	if len(xs) > 0 {
		lines = append(lines, labelSty.Render("  X ")+sparkSty.Render(renderSparkline(xs, sparkW)))
		lines = append(lines, labelSty.Render("  Y ")+sparkSty.Render(renderSparkline(ys, sparkW)))
		lines = append(lines, "")
	}

	if t.HasLatest {
		compassH := height - len(lines) - 5 // leave room for label + border
		if compassH < 5 {
			compassH = 5
		}
		compassW := innerW
		if compassW > compassH*3 {
			compassW = compassH * 3
		}

		compass := RenderCompass(compassW, compassH, p.Angle(), p.GroundDistance(), maxRange)
		if compass != "" {
			prefix := strings.Repeat(" ", max(0, (innerW-compassW)/2))
			for _, cl := range strings.Split(compass, "\n") {
				lines = append(lines, prefix+cl)
			}
		}

		label := fmt.Sprintf("%.1fm  %s", p.GroundDistance(), angleToDir(p.Angle()))
		lines = append(lines, strings.Repeat(" ", max(0, (innerW-len(label))/2))+valSty.Render(label))
	}

	for len(lines) < height-2 {
		lines = append(lines, "")
	}
	if len(lines) > height-2 && height > 2 {
		lines = lines[:height-2]
	}

	return StylePanelActive.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
}

// renderRangeBar fills proportionally to distance over maxRange.
func renderRangeBar(distance, maxRange float64, width int) string {
	frac := rangeFraction(distance, maxRange)
	filled := int(math.Round(frac * float64(width)))

	bar := strings.Repeat("|", filled) + strings.Repeat("-", width-filled)
	filledPart := lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(frac))).Render(bar[:filled])
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(bar[filled:])
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

// renderSparkline scales the last width values between their min and max.
// Non-finite values render as a gap.
func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}

	chars := []byte{'_', '.', '-', '~', '^'}

	start := 0
	if len(values) > width {
		start = len(values) - width
	}
	values = values[start:]

	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	rng := maxV - minV
	if rng < 0.1 {
		rng = 0.1
	}

	var sb strings.Builder
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			sb.WriteByte(' ')
			continue
		}
		idx := int((v - minV) / rng * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		sb.WriteByte(chars[idx])
	}

	return sb.String()
}

func angleToDir(a float64) string {
	for a < 0 {
		a += 2 * math.Pi
	}
	for a >= 2*math.Pi {
		a -= 2 * math.Pi
	}
	dirs := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	idx := int(math.Round(a/(math.Pi/4))) % 8
	return dirs[idx]
}

func formatLastSeen(t time.Time) string {
	d := time.Since(t)
	if d < time.Second {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return t.Format("2006-01-02 15:04:05")
}
