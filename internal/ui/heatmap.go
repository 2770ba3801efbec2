package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var heatShades = []string{"#003300", "#004A0A", "#008F11", "#00CC33", "#00FF41", "#AAFF00", "#FFCC00", "#FF6600"}

const heatRamp = " .:-=+*#%@"

// RenderHeatmap draws a count matrix indexed [y][x] as shaded cells, two
// columns per cell, north (high y) at the top. Grids larger than the area are
// cropped around the center cell, which marks the reader.
func RenderHeatmap(matrix [][]int, width, height int) string {
	n := len(matrix)
	if n == 0 || width < 2 || height < 1 {
		return ""
	}

	peak := 0
	for _, row := range matrix {
		for _, v := range row {
			peak = max(peak, v)
		}
	}

	center := n / 2
	cols := min(n, width/2)
	rows := min(n, height)
	x0 := max(0, min(center-cols/2, n-cols))
	y0 := max(0, min(center-rows/2, n-rows))

	var sb strings.Builder
	for r := 0; r < rows; r++ {
		y := y0 + rows - 1 - r
		for c := 0; c < cols; c++ {
			x := x0 + c
			sb.WriteString(heatCell(matrix[y][x], peak, x == center && y == center))
		}
		if r < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func heatCell(v, peak int, reader bool) string {
	if v == 0 || peak == 0 {
		if reader {
			return StyleTagID.Render("()")
		}
		return StyleHelp.Render(" .")
	}
	frac := float64(v) / float64(peak)
	ch := heatRamp[1+int(frac*float64(len(heatRamp)-2))]
	color := heatShades[int(frac*float64(len(heatShades)-1))]
	s := string([]byte{ch, ch})
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
}

// RenderHeatmapLegend describes the binning below the heatmap.
func RenderHeatmapLegend(width, gridSize int, meterPerCell float64, peak int) string {
	legend := StyleHelp.Render(fmt.Sprintf("%dx%d cells  %.2fm/cell  peak %d  () reader", gridSize, gridSize, meterPerCell, peak))
	pad := max(0, (width-lipgloss.Width(legend))/2)
	return strings.Repeat(" ", pad) + legend
}
