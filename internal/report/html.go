package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"atr-radar.klederson.com/internal/position"
)

// viridis, low to high.
var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteHeatmapHTML renders the heatmap as a standalone interactive page. Each
// non-empty cell is a marker at its center, colored by count.
func WriteHeatmapHTML(w io.Writer, store *position.PointStore, gridSize int, meterPerCell float64) error {
	if gridSize < 1 {
		gridSize = position.DefaultGridSize
	}
	if meterPerCell <= 0 {
		meterPerCell = position.DefaultMeterPerCell
	}
	m := store.HeatmapMatrix(gridSize, meterPerCell)
	g := heatGrid{m: m, mpc: meterPerCell}

	data := make([]opts.ScatterData, 0, gridSize*gridSize)
	for r := range m {
		for c, n := range m[r] {
			if n == 0 {
				continue
			}
			data = append(data, opts.ScatterData{Value: []interface{}{g.X(c), g.Y(r), n}})
		}
	}

	half := float64(gridSize/2)*meterPerCell + meterPerCell/2
	maxCount := position.MatrixMax(m)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ATR Tag Heatmap", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tag Heatmap",
			Subtitle: fmt.Sprintf("grid=%d cell=%gm cells=%d max=%d", gridSize, meterPerCell, len(data), maxCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -half, Max: half, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -half, Max: half, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max(maxCount, 1)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	scatter.AddSeries("cells", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 20}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render heatmap html: %w", err)
	}
	return nil
}
