package radar

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"atr-radar.klederson.com/internal/config"
	"atr-radar.klederson.com/internal/position"
)

var (
	colorBright   = lipgloss.Color("#00FF41")
	colorMid      = lipgloss.Color("#008F11")
	colorDim      = lipgloss.Color("#004A0A")
	colorStale    = lipgloss.Color("#2F4F2F")
	colorSelected = lipgloss.Color("#FFAA00")

	styleCenter   = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleRing     = lipgloss.NewStyle().Foreground(colorMid)
	styleDot      = lipgloss.NewStyle().Foreground(colorDim)
	styleStale    = lipgloss.NewStyle().Foreground(colorStale)
	styleSelected = lipgloss.NewStyle().Foreground(colorSelected).Bold(true)
	styleLegend   = lipgloss.NewStyle().Foreground(colorMid)
)

const maxLabelLen = 6

// Blip is one tag drawn on the radar.
type Blip struct {
	Tag      position.TagSnapshot
	Stale    bool // No confirmed position recently
	Selected bool
}

type blipPos struct {
	col, row int
	blip     Blip
	label    string
	labelCol int
	labelRow int
}

// Render produces the radar display as a styled string. Blips without a
// confirmed position or with non-finite coordinates are not drawn.
func Render(width, height int, blips []Blip, sweep *Sweep, maxRange float64) string {
	if width < 10 || height < 5 {
		return ""
	}

	centerX := width / 2
	centerY := height / 2
	radius := float64(min(centerX-1, int(float64(centerY-1)/config.AspectRatio)))
	if radius < 3 {
		radius = 3
	}

	ringRadii := make([]float64, config.RingCount)
	for i := range ringRadii {
		ringRadii[i] = radius * float64(i+1) / float64(config.RingCount)
	}

	bps := placeBlips(blips, centerX, centerY, radius, width, maxRange)

	// Label cells: key = row*width+col
	type labelCell struct {
		bpIdx   int
		charIdx int
	}
	labelMap := make(map[int]labelCell)
	for i, bp := range bps {
		if bp.label == "" {
			continue
		}
		for ci := 0; ci < len(bp.label); ci++ {
			key := bp.labelRow*width + bp.labelCol + ci
			labelMap[key] = labelCell{bpIdx: i, charIdx: ci}
		}
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			key := row*width + col
			if lc, ok := labelMap[key]; ok {
				bp := bps[lc.bpIdx]
				sb.WriteString(styleLabel(bp.blip, sweep, col, row, centerX, centerY, bp.label[lc.charIdx]))
				continue
			}
			sb.WriteString(renderCell(col, row, centerX, centerY, radius, ringRadii, sweep, bps))
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}

// placeBlips computes positions and resolves label collisions. The selected
// blip is placed first so its label always wins.
func placeBlips(blips []Blip, centerX, centerY int, radius float64, width int, maxRange float64) []blipPos {
	ordered := make([]Blip, 0, len(blips))
	for _, b := range blips {
		if b.Selected {
			ordered = append([]Blip{b}, ordered...)
		} else {
			ordered = append(ordered, b)
		}
	}

	bps := make([]blipPos, 0, len(ordered))

	type segment struct{ start, end int }
	occupied := make(map[int][]segment)
	collides := func(row, start, n int) bool {
		for _, seg := range occupied[row] {
			if start < seg.end && start+n > seg.start {
				return true
			}
		}
		return false
	}

	for _, b := range ordered {
		p := b.Tag.Latest
		if !b.Tag.HasLatest || !p.Finite() {
			continue
		}

		r := MetersToRadius(p.GroundDistance(), maxRange, radius)
		dc, dr := PolarToCell(p.Angle(), r, centerX, centerY)

		label := Callsign(b.Tag.TagID)

		lc := dc + 2
		if lc+len(label) >= width {
			lc = dc - len(label) - 1
		}
		if lc < 0 {
			lc = 0
		}

		lr := dr
		placed := false
		for _, try := range []int{dr, dr + 1, dr - 1} {
			if !collides(try, lc, len(label)) {
				lr, placed = try, true
				break
			}
		}
		if !placed {
			label = ""
		}

		bps = append(bps, blipPos{col: dc, row: dr, blip: b, label: label, labelCol: lc, labelRow: lr})
		occupied[dr] = append(occupied[dr], segment{dc, dc + 1})
		if label != "" {
			occupied[lr] = append(occupied[lr], segment{lc, lc + len(label)})
		}
	}

	return bps
}

// Callsign is the short radar label of a tag: the tail of its EPC.
func Callsign(tagID string) string {
	if len(tagID) > maxLabelLen {
		return tagID[len(tagID)-maxLabelLen:]
	}
	return tagID
}

func blipStyle(b Blip) lipgloss.Style {
	switch {
	case b.Selected:
		return styleSelected
	case b.Stale:
		return styleStale
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(b.Tag.Color)).Bold(true)
	}
}

func styleLabel(b Blip, sweep *Sweep, col, row, centerX, centerY int, ch byte) string {
	s := string(ch)
	if !b.Selected && !b.Stale && sweep.Intensity(CellAngle(col, row, centerX, centerY)) > 0.5 {
		return lipgloss.NewStyle().Foreground(colorBright).Bold(true).Render(s)
	}
	st := blipStyle(b)
	return st.UnsetBold().Render(s)
}

func renderCell(col, row, centerX, centerY int, radius float64, ringRadii []float64, sweep *Sweep, bps []blipPos) string {
	dist := CellDistance(col, row, centerX, centerY)
	angle := CellAngle(col, row, centerX, centerY)

	for _, bp := range bps {
		if col == bp.col && row == bp.row {
			return renderBlip(bp.blip, sweep, angle)
		}
	}

	if dist > radius+0.5 {
		return " "
	}

	if col == centerX && row == centerY {
		return styleCenter.Render("+")
	}

	if col == centerX && dist <= radius {
		return renderSweepChar('|', sweep, angle)
	}
	if row == centerY && dist <= radius {
		return renderSweepChar('-', sweep, angle)
	}

	for _, ringR := range ringRadii {
		if math.Abs(dist-ringR) < 0.8 {
			return renderSweepChar(RingChar(angle), sweep, angle)
		}
	}

	if dist <= radius {
		return renderInteriorCell(sweep, angle)
	}

	return " "
}

func renderBlip(b Blip, sweep *Sweep, cellAngle float64) string {
	symbol := "*"
	if b.Stale {
		symbol = "o"
	}
	if b.Selected {
		symbol = "@"
	}
	if !b.Selected && !b.Stale && sweep.Intensity(cellAngle) > 0.5 {
		return lipgloss.NewStyle().Foreground(colorBright).Bold(true).Render(symbol)
	}
	return blipStyle(b).Render(symbol)
}

func renderSweepChar(ch rune, sweep *Sweep, angle float64) string {
	color := sweepColor(sweep.Intensity(angle))
	if color == "" {
		return styleRing.Render(string(ch))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(ch))
}

func renderInteriorCell(sweep *Sweep, angle float64) string {
	color := sweepColor(sweep.Intensity(angle))
	if color == "" {
		return styleDot.Render(".")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(".")
}

func sweepColor(intensity float64) string {
	if intensity <= 0 {
		return ""
	}
	if intensity > 0.8 {
		return "#00FF41"
	}
	if intensity > 0.5 {
		return "#00CC33"
	}
	if intensity > 0.3 {
		return "#00AA22"
	}
	return "#005511"
}

// RenderLegend produces the radar legend line: symbols, ring spacing and
// mounting heights.
func RenderLegend(width int, maxRange float64, h position.Heights) string {
	legend := styleLegend.Render("* tag") + "  " +
		styleStale.Render("o stale") + "  " +
		styleSelected.Render("@ selected") + "  " +
		styleLegend.Render(fmtRings(maxRange)) + "  " +
		styleLegend.Render(fmtHeights(h))

	pad := (width - lipgloss.Width(legend)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + legend
}
