package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"atr-radar.klederson.com/internal/position"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

// XYPlot charts X and Y of one tag over time, from the full log when
// allPoints is set or from the confirmed points otherwise.
func XYPlot(store *position.PointStore, tagID string, allPoints bool) (*plot.Plot, error) {
	ts, xs, ys := store.XYHistory(tagID, allPoints)

	xPts := make(plotter.XYs, 0, len(ts))
	yPts := make(plotter.XYs, 0, len(ts))
	for i, t := range ts {
		// gonum/plot rejects NaN and infinities.
		if !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		sec := unixSeconds(t)
		xPts = append(xPts, plotter.XY{X: sec, Y: xs[i]})
		yPts = append(yPts, plotter.XY{X: sec, Y: ys[i]})
	}
	if len(xPts) == 0 {
		return nil, fmt.Errorf("%w for tag %s", ErrNoData, tagID)
	}

	kind := "significant points"
	if allPoints {
		kind = "all points"
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tag %s position variation (%s)", tagID, kind)
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Y.Label.Text = "Meters"
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		label string
		pts   plotter.XYs
		c     color.Color
	}{
		{"X", xPts, color.RGBA{R: 220, G: 50, B: 47, A: 255}},
		{"Y", yPts, color.RGBA{R: 38, G: 139, B: 210, A: 255}},
	} {
		line, points, err := plotter.NewLinePoints(s.pts)
		if err != nil {
			return nil, fmt.Errorf("%s series: %w", s.label, err)
		}
		line.Color = s.c
		line.Width = vg.Points(1)
		points.Color = s.c
		points.Radius = vg.Points(1.5)
		p.Add(line, points)
		p.Legend.Add(s.label, line, points)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SaveXY writes XYPlot to path.
func SaveXY(path string, store *position.PointStore, tagID string, allPoints bool) error {
	p, err := XYPlot(store, tagID, allPoints)
	if err != nil {
		return err
	}
	if err := p.Save(wideWidth, wideHeight, path); err != nil {
		return fmt.Errorf("save xy chart: %w", err)
	}
	return nil
}

// TrajectoryPlot draws the confirmed path of each tag in tagIDs (every tag
// with a live series when empty), colored by series.
func TrajectoryPlot(store *position.PointStore, tagIDs ...string) (*plot.Plot, error) {
	want := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		want[id] = true
	}

	p := plot.New()
	p.Title.Text = "Tag trajectories (significant points)"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	drawn := 0
	for _, series := range store.AllSeries() {
		if len(want) > 0 && !want[series.TagID] {
			continue
		}
		var pts plotter.XYs
		for _, sp := range series.Significant() {
			if sp.Finite() {
				pts = append(pts, plotter.XY{X: sp.X, Y: sp.Y})
			}
		}
		if len(pts) == 0 {
			continue
		}

		c := hexColor(series.Color)
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("trajectory of %s: %w", series.TagID, err)
		}
		line.Color = c
		line.Width = vg.Points(1)
		points.Color = c
		points.Radius = vg.Points(2)
		p.Add(line, points)
		p.Legend.Add(series.TagID, line, points)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoData
	}

	origin, err := plotter.NewScatter(plotter.XYs{{}})
	if err == nil {
		origin.GlyphStyle.Color = color.Black
		origin.GlyphStyle.Radius = vg.Points(4)
		p.Add(origin)
	}
	return p, nil
}

// SaveTrajectory writes TrajectoryPlot to path.
func SaveTrajectory(path string, store *position.PointStore, tagIDs ...string) error {
	p, err := TrajectoryPlot(store, tagIDs...)
	if err != nil {
		return err
	}
	if err := p.Save(squareSize, squareSize, path); err != nil {
		return fmt.Errorf("save trajectory: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
