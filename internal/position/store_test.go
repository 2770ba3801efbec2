package position

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func pt(tag string, x, y float64, sec float64) PositionPoint {
	return PositionPoint{TagID: tag, X: x, Y: y, Z: 1, Timestamp: at(sec)}
}

func TestFirstPointIsSignificant(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())

	for _, tag := range []string{"E200", "E201", "3034"} {
		got, ok := s.AddPositionPoint(pt(tag, 1, 2, 0))
		require.True(t, ok, tag)
		assert.True(t, got.Significant)
		assert.Equal(t, tag, got.TagID)
	}
}

func TestPendingPointHeldInsideGate(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))

	_, ok := s.AddPositionPoint(pt("A", 1, 1, 0.1))
	assert.False(t, ok)

	series := s.AllSeries()
	require.Len(t, series, 1)
	last := series[0].Points[len(series[0].Points)-1]
	assert.Equal(t, at(0.1), last.Timestamp)
	assert.False(t, last.Significant)
}

func TestGateReleasesMeanOfPending(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.AddPositionPoint(pt("A", 2.5, -1.5, 0.1))

	got, ok := s.AddPositionPoint(pt("A", 9, 9, 0.6))
	require.True(t, ok)
	assert.True(t, got.Significant)
	assert.InDelta(t, 2.5, got.X, 1e-9)
	assert.InDelta(t, -1.5, got.Y, 1e-9)
	assert.Equal(t, at(0.6), got.Timestamp)
}

func TestGateAveragesSeveralPending(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.AddPositionPoint(pt("A", 1, 4, 0.1))
	s.AddPositionPoint(pt("A", 3, 8, 0.2))

	got, ok := s.AddPositionPoint(PositionPoint{TagID: "A", X: 100, Y: 100, Z: 2.5, Azimuth: 12, Elevation: 34, Timestamp: at(0.7)})
	require.True(t, ok)
	assert.InDelta(t, 2.0, got.X, 1e-9)
	assert.InDelta(t, 6.0, got.Y, 1e-9)
	assert.Equal(t, 2.5, got.Z)
	assert.Equal(t, 12.0, got.Azimuth)
	assert.Equal(t, 34.0, got.Elevation)
}

func TestGateNeedsPendingPoints(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))

	// Nothing pending yet, so even a late point is only buffered.
	_, ok := s.AddPositionPoint(pt("A", 5, 5, 3))
	assert.False(t, ok)
}

func TestWindowCapacity(t *testing.T) {
	cfg := DefaultStoreConfig()
	s := NewPointStore(cfg)

	total := cfg.MaxPointsPerSeries + 50
	for i := 0; i < total; i++ {
		s.AddPositionPoint(pt("A", float64(i), 0, float64(i)*0.01))
	}

	series := s.AllSeries()
	require.Len(t, series, 1)
	require.Len(t, series[0].Points, cfg.MaxPointsPerSeries)
	assert.Equal(t, at(float64(total-1)*0.01), series[0].Points[len(series[0].Points)-1].Timestamp)
	oldestKept := 50
	assert.Equal(t, at(float64(oldestKept)*0.01), series[0].Points[0].Timestamp)
}

func TestAllPointsLogCapacity(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxAllPointsPerSeries: 10})
	for i := 0; i < 25; i++ {
		s.AddPositionPoint(pt("A", float64(i), 0, float64(i)))
	}

	ts, xs, ys := s.XYHistory("A", true)
	require.Len(t, ts, 10)
	assert.Len(t, ys, 10)
	assert.Equal(t, 15.0, xs[0])
	assert.Equal(t, 24.0, xs[9])

	all := s.AllPoints("A")
	require.Len(t, all, 10)
	assert.Equal(t, at(15), all[0].Timestamp)
	assert.Equal(t, at(24), all[9].Timestamp)
}

func TestTrimmedAnchorFallsBackToWindowMean(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxPointsPerSeries: 3})
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.AddPositionPoint(pt("A", 1, 1, 0.01))
	s.AddPositionPoint(pt("A", 2, 2, 0.02))
	// The anchor is trimmed here; the window holds only pending points.
	s.AddPositionPoint(pt("A", 3, 3, 0.03))

	got, ok := s.AddPositionPoint(pt("A", 50, 50, 0.04))
	require.True(t, ok)
	assert.True(t, got.Significant)
	assert.InDelta(t, 2.0, got.X, 1e-9)
	assert.InDelta(t, 2.0, got.Y, 1e-9)
}

func TestSeriesEvictionKeepsLog(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxSeries: 2})
	s.AddPositionPoint(pt("A", 1, 1, 0))
	s.AddPositionPoint(pt("B", 2, 2, 1))
	s.AddPositionPoint(pt("C", 3, 3, 2))

	var ids []string
	for _, ts := range s.AllSeries() {
		ids = append(ids, ts.TagID)
	}
	assert.Equal(t, []string{"B", "C"}, ids)

	ts, xs, ys := s.XYHistory("A", true)
	require.Len(t, ts, 1)
	assert.Equal(t, 1.0, xs[0])
	assert.Equal(t, 1.0, ys[0])

	sts, _, _ := s.XYHistory("A", false)
	assert.Empty(t, sts)
	assert.Equal(t, []string{"A", "B", "C"}, s.TagIDs())
}

func TestSeriesColorRotates(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	for i := 0; i < len(SeriesPalette)+1; i++ {
		s.AddPositionPoint(pt(fmt.Sprintf("T%02d", i), 0, 0, float64(i)))
	}
	series := s.AllSeries()
	assert.Equal(t, SeriesPalette[0], series[0].Color)
	assert.Equal(t, SeriesPalette[1], series[1].Color)
	assert.Equal(t, SeriesPalette[0], series[len(SeriesPalette)].Color)
}

func TestSignificantPointsSortedAndFiltered(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("B", 0, 0, 1))
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.AddPositionPoint(pt("A", 1, 0, 0.2))
	s.AddPositionPoint(pt("A", 1, 0, 0.9))

	all := s.SignificantPoints("")
	require.Len(t, all, 3)
	assert.Equal(t, at(0), all[0].Timestamp)
	assert.Equal(t, at(0.9), all[1].Timestamp)
	assert.Equal(t, at(1), all[2].Timestamp)

	onlyA := s.SignificantPoints("A")
	assert.Len(t, onlyA, 2)
	assert.Empty(t, s.SignificantPoints("missing"))

	latest, ok := s.LatestSignificant("A")
	require.True(t, ok)
	assert.Equal(t, at(0.9), latest.Timestamp)
}

func TestUnknownTagReadsAreEmpty(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	ts, xs, ys := s.XYHistory("nope", true)
	assert.Empty(t, ts)
	assert.Empty(t, xs)
	assert.Empty(t, ys)
	_, ok := s.LatestSignificant("nope")
	assert.False(t, ok)
	assert.Empty(t, s.AllPoints("nope"))
	assert.Empty(t, s.SignificantPoints("nope"))
}

func TestHeatmapBinning(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.AddPositionPoint(pt("A", 10, 10, 1))
	s.AddPositionPoint(pt("B", 2, -1, 0))

	m := s.HeatmapMatrix(13, 1.0)
	require.Len(t, m, 13)
	assert.Equal(t, 1, m[6][6])
	assert.Equal(t, 1, m[5][8])

	total := 0
	for _, row := range m {
		require.Len(t, row, 13)
		for _, v := range row {
			total += v
		}
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, MatrixMax(m))
}

func TestHeatmapSkipsNonFinite(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", math.Inf(1), 0, 0))
	s.AddPositionPoint(pt("A", math.NaN(), math.NaN(), 1))

	m := s.HeatmapMatrix(5, 1.0)
	assert.Equal(t, 0, MatrixMax(m))
}

func TestCellIndexRounding(t *testing.T) {
	tests := []struct {
		coord float64
		want  int
		ok    bool
	}{
		{0, 6, true},
		{0.4, 6, true},
		{0.5, 6, true}, // half to even
		{1.5, 8, true},
		{-6, 0, true},
		{6.4, 12, true},
		{6.6, 0, false},
		{-7, 0, false},
	}
	for _, tt := range tests {
		got, ok := CellIndex(tt.coord, 1.0, 13)
		assert.Equal(t, tt.ok, ok, "coord %v", tt.coord)
		if tt.ok {
			assert.Equal(t, tt.want, got, "coord %v", tt.coord)
		}
	}
}

func TestNonFinitePointsAreStored(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	got, ok := s.AddPositionPoint(pt("A", math.Inf(1), math.NaN(), 0))
	require.True(t, ok)
	assert.True(t, math.IsInf(got.X, 1))
	assert.True(t, math.IsNaN(got.Y))
}

func TestSnapshot(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxSeries: 2})
	s.AddPositionPoint(pt("B", 1, 1, 0))
	s.AddPositionPoint(pt("B", 2, 2, 0.1))
	s.AddPositionPoint(pt("B", 4, 4, 0.7))
	s.AddPositionPoint(pt("A", 9, 9, 0.2))

	snaps := s.Snapshot()
	require.Len(t, snaps, 2)

	b := snaps[0]
	assert.Equal(t, "B", b.TagID)
	assert.Equal(t, SeriesPalette[0], b.Color)
	assert.True(t, b.HasLatest)
	assert.InDelta(t, 2.0, b.Latest.X, 1e-9)
	assert.Equal(t, at(0.7), b.Latest.Timestamp)
	assert.Equal(t, 3, b.Window)
	assert.Equal(t, 2, b.Significant)
	assert.Equal(t, 3, b.Logged)
	assert.Equal(t, at(0), b.FirstSeen)
	assert.Equal(t, at(0.7), b.LastSeen)

	assert.Equal(t, "A", snaps[1].TagID)
	assert.Equal(t, 1, snaps[1].Significant)

	// Evicting B drops it from the live view but keeps its log.
	s.AddPositionPoint(pt("C", 0, 0, 1))
	snaps = s.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, "A", snaps[0].TagID)
	assert.Equal(t, "C", snaps[1].TagID)
	assert.Len(t, s.AllPoints("B"), 3)
}

func TestClear(t *testing.T) {
	s := NewPointStore(DefaultStoreConfig())
	s.AddPositionPoint(pt("A", 0, 0, 0))
	s.Clear()

	assert.Empty(t, s.AllSeries())
	assert.Empty(t, s.TagIDs())
	assert.Equal(t, 0, s.SeriesCount())
	_, ok := s.AddPositionPoint(pt("A", 0, 0, 5))
	assert.True(t, ok, "first point after clear is significant again")
}

func TestFiveReadingScenario(t *testing.T) {
	calc := NewCalculator(DefaultReaderHeight, DefaultTagHeight)
	s := NewPointStore(DefaultStoreConfig())

	var confirmed []PositionPoint
	for i := 0; i < 5; i++ {
		p := calc.CalculatePosition(RawAngularReading{
			TagID:     "E200",
			Azimuth:   0,
			Elevation: 30,
			Timestamp: at(float64(i) * 0.2),
		})
		if sig, ok := s.AddPositionPoint(p); ok {
			confirmed = append(confirmed, sig)
		}
	}

	require.Len(t, confirmed, 2)
	assert.Equal(t, at(0), confirmed[0].Timestamp)
	assert.Equal(t, at(0.6), confirmed[1].Timestamp)
	assert.Len(t, s.SignificantPoints("E200"), 2)
}

func TestStats(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxSeries: 1})
	s.AddPositionPoint(pt("A", 1, 2, 0))
	s.AddPositionPoint(pt("A", 3, 4, 0.1))
	s.AddPositionPoint(pt("B", 0, 0, 1))

	st := s.Stats()
	require.Len(t, st, 2)

	a := st[0]
	assert.Equal(t, "A", a.TagID)
	assert.Equal(t, 2, a.TotalPoints)
	assert.InDelta(t, 2.0, a.MeanX, 1e-9)
	assert.InDelta(t, 3.0, a.MeanY, 1e-9)
	assert.InDelta(t, 1.0, a.StdDevX, 1e-9)
	assert.False(t, a.HasSeries)
	assert.Equal(t, at(0), a.FirstSeen)
	assert.Equal(t, at(0.1), a.LastSeen)

	b := st[1]
	assert.True(t, b.HasSeries)
	assert.Equal(t, 1, b.Significant)
	assert.Equal(t, 1, b.WindowPoints)
}

func TestConcurrentProducersAndReaders(t *testing.T) {
	s := NewPointStore(StoreConfig{MaxSeries: 8, MaxPointsPerSeries: 20, MaxAllPointsPerSeries: 200})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			tag := fmt.Sprintf("TAG-%d", w)
			for i := 0; i < 500; i++ {
				s.AddPositionPoint(pt(tag, float64(i%7), float64(i%5), float64(i)*0.05))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.HeatmapMatrix(13, 1)
			s.AllSeries()
			s.Stats()
		}
	}()
	wg.Wait()

	for _, ts := range s.AllSeries() {
		assert.LessOrEqual(t, len(ts.Points), 20)
	}
	for _, st := range s.Stats() {
		assert.Equal(t, 200, st.TotalPoints)
	}
	assert.Equal(t, 8, s.SeriesCount())
}
