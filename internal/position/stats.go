package position

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes every tag with a log, sorted by tag id. Non-finite points
// are left out of the means and deviations.
func (s *PointStore) Stats() []TagStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TagStats, 0, len(s.all))
	for id, hist := range s.all {
		st := TagStats{TagID: id, TotalPoints: hist.Len()}

		xs := make([]float64, 0, hist.Len())
		ys := make([]float64, 0, hist.Len())
		hist.Each(func(p PositionPoint) {
			if st.FirstSeen.IsZero() || p.Timestamp.Before(st.FirstSeen) {
				st.FirstSeen = p.Timestamp
			}
			if p.Timestamp.After(st.LastSeen) {
				st.LastSeen = p.Timestamp
			}
			if p.Finite() {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
		})
		if len(xs) > 0 {
			st.MeanX, st.StdDevX = stat.PopMeanStdDev(xs, nil)
			st.MeanY, st.StdDevY = stat.PopMeanStdDev(ys, nil)
		}

		if ts, ok := s.series[id]; ok {
			st.HasSeries = true
			st.WindowPoints = len(ts.Points)
			for _, p := range ts.Points {
				if p.Significant {
					st.Significant++
				}
			}
		}
		result = append(result, st)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TagID < result[j].TagID
	})
	return result
}
