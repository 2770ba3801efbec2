// Package report renders offline views of a point store: heatmap, XY
// variation and trajectory charts, an interactive HTML heatmap and a
// statistics table.
package report

import (
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"atr-radar.klederson.com/internal/position"
)

// Image sizes. Save picks PNG, SVG, PDF, EPS, JPEG or TIFF from the file
// extension.
var (
	squareSize = 8 * vg.Inch
	wideWidth  = 14 * vg.Inch
	wideHeight = 6 * vg.Inch
)

// heatGrid adapts a [y][x] count matrix to plotter.GridXYZ with cell centers
// in meters.
type heatGrid struct {
	m   [][]int
	mpc float64
}

func (g heatGrid) Dims() (c, r int)   { return len(g.m[0]), len(g.m) }
func (g heatGrid) Z(c, r int) float64 { return float64(g.m[r][c]) }
func (g heatGrid) X(c int) float64    { return g.coord(c, len(g.m[0])) }
func (g heatGrid) Y(r int) float64    { return g.coord(r, len(g.m)) }

func (g heatGrid) coord(i, n int) float64 {
	return float64(i-n/2) * g.mpc
}

// HeatmapPlot bins every logged point of store and draws the counts around
// the reader, which sits at the origin.
func HeatmapPlot(store *position.PointStore, gridSize int, meterPerCell float64) *plot.Plot {
	if gridSize < 1 {
		gridSize = position.DefaultGridSize
	}
	if meterPerCell <= 0 {
		meterPerCell = position.DefaultMeterPerCell
	}
	m := store.HeatmapMatrix(gridSize, meterPerCell)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tag heatmap (%dx%d, %.2g m/cell, max %d)",
		gridSize, gridSize, meterPerCell, position.MatrixMax(m))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	hm := plotter.NewHeatMap(heatGrid{m: m, mpc: meterPerCell}, palette.Heat(16, 1))
	if position.MatrixMax(m) == 0 {
		// A flat grid has no range to map onto the palette.
		hm.Min, hm.Max = 0, 1
	}
	p.Add(hm)

	reader, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err == nil {
		reader.GlyphStyle.Color = color.RGBA{R: 0, G: 170, B: 255, A: 255}
		reader.GlyphStyle.Radius = vg.Points(5)
		p.Add(reader)
		p.Legend.Add("reader", reader)
	}
	p.Add(plotter.NewGrid())
	return p
}

// SaveHeatmap writes the heatmap to path.
func SaveHeatmap(path string, store *position.PointStore, gridSize int, meterPerCell float64) error {
	p := HeatmapPlot(store, gridSize, meterPerCell)
	if err := p.Save(squareSize, squareSize, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// hexColor parses "#RRGGBB"; anything else is mid grey.
func hexColor(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.TrimPrefix(s, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Gray{Y: 128}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
