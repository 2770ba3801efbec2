package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"atr-radar.klederson.com/internal/radar"
)

// Glyphs indexed by radar.Sector.
var (
	shaftGlyphs = [8]byte{'|', '/', '-', '\\', '|', '/', '-', '\\'}
	tipGlyphs   = [8]byte{'^', '/', '>', '\\', 'v', '/', '<', '\\'}
)

type glyphClass uint8

const (
	classBlank glyphClass = iota
	classRing
	classAxis
	classMark
	classArrow
)

// canvas is a character grid where each cell also remembers how to style it.
type canvas struct {
	w, h  int
	cells [][]byte
	class [][]glyphClass
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]byte, h), class: make([][]glyphClass, h)}
	for r := range c.cells {
		c.cells[r] = []byte(strings.Repeat(" ", w))
		c.class[r] = make([]glyphClass, w)
	}
	return c
}

func (c *canvas) inside(col, row int) bool {
	return col >= 0 && col < c.w && row >= 0 && row < c.h
}

func (c *canvas) set(col, row int, ch byte, cl glyphClass) {
	if c.inside(col, row) {
		c.cells[row][col] = ch
		c.class[row][col] = cl
	}
}

// fill sets a cell only if nothing was drawn there yet.
func (c *canvas) fill(col, row int, ch byte, cl glyphClass) {
	if c.inside(col, row) && c.class[row][col] == classBlank {
		c.set(col, row, ch, cl)
	}
}

func (c *canvas) render(styles map[glyphClass]lipgloss.Style) string {
	var sb strings.Builder
	for row := 0; row < c.h; row++ {
		for col := 0; col < c.w; col++ {
			cl := c.class[row][col]
			if cl == classBlank {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteString(styles[cl].Render(string(c.cells[row][col])))
		}
		if row < c.h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderCompass renders a bearing dial for one tag: the outer ring is
// maxRange, the dotted ring half of it, and the arrow ends at the tag.
// angle: radians (0=north, clockwise), distance and maxRange: meters.
func RenderCompass(width, height int, angle, distance, maxRange float64) string {
	if width < 9 || height < 5 {
		return ""
	}

	c := newCanvas(width, height)

	fcx := float64(width) / 2
	fcy := float64(height) / 2
	rx := math.Max(fcx-2, 3) // horizontal radius in columns
	ry := math.Max(fcy-2, 2) // vertical radius in rows
	cx := int(math.Round(fcx))
	cy := int(math.Round(fcy))

	at := func(a, frac float64) (int, int) {
		return int(math.Round(fcx + frac*rx*math.Sin(a))), int(math.Round(fcy - frac*ry*math.Cos(a)))
	}

	const steps = 80
	for i := 0; i < steps; i++ {
		a := float64(i) * 2 * math.Pi / steps
		col, row := at(a, 1)
		c.fill(col, row, byte(radar.RingChar(a)), classRing)
		if i%2 == 0 {
			col, row = at(a, 0.5)
			c.fill(col, row, '.', classAxis)
		}
	}

	dx, dy := int(math.Round(rx)), int(math.Round(ry))
	c.set(cx, cy-dy-1, 'N', classMark)
	c.set(cx, cy+dy+1, 'S', classMark)
	c.set(cx+dx+1, cy, 'E', classMark)
	c.set(cx-dx-1, cy, 'W', classMark)

	for r := cy - dy + 1; r < cy+dy; r++ {
		c.fill(cx, r, ':', classAxis)
	}
	for col := cx - dx + 1; col < cx+dx; col++ {
		c.fill(col, cy, '.', classAxis)
	}

	// Shaft from the center to the tag, arrowhead on the tag.
	frac := rangeFraction(distance, maxRange)
	tipCol, tipRow := at(angle, frac)
	n := max(abs(tipCol-cx), abs(tipRow-cy))
	sector := radar.Sector(angle)
	for s := 1; s < n; s++ {
		col, row := at(angle, frac*float64(s)/float64(n))
		c.set(col, row, shaftGlyphs[sector], classArrow)
	}
	c.set(cx, cy, '+', classMark)
	if tipCol != cx || tipRow != cy {
		c.set(tipCol, tipRow, tipGlyphs[sector], classArrow)
	}

	return c.render(map[glyphClass]lipgloss.Style{
		classRing:  lipgloss.NewStyle().Foreground(ColorDimGreen),
		classAxis:  lipgloss.NewStyle().Foreground(lipgloss.Color("#003300")),
		classMark:  lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true),
		classArrow: lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(frac))).Bold(true),
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// rangeFraction maps a distance into [0, 1] of maxRange. Non-finite
// distances count as out of range.
func rangeFraction(distance, maxRange float64) float64 {
	if maxRange <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 1
	}
	return math.Max(0, math.Min(distance/maxRange, 1))
}

// proximityColor maps a range fraction to a green shade (brighter = closer).
func proximityColor(frac float64) string {
	switch {
	case frac < 0.2:
		return "#00FF41"
	case frac < 0.4:
		return "#00CC33"
	case frac < 0.6:
		return "#00AA22"
	case frac < 0.8:
		return "#008F11"
	default:
		return "#005511"
	}
}
