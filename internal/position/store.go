package position

import (
	"sort"
	"sync"
	"time"
)

// SignificanceGate is how long after the last significant point pending fixes
// are held before they collapse into a new significant point.
const SignificanceGate = 500 * time.Millisecond

const (
	DefaultMaxSeries             = 50
	DefaultMaxPointsPerSeries    = 100
	DefaultMaxAllPointsPerSeries = 1000
	MaxAllPointsCeiling          = 10_000_000
)

// SeriesPalette is the rotating color set assigned to new series.
var SeriesPalette = []string{
	"#00FF41", "#FFCC00", "#00FFAA", "#FF6600", "#33CCFF",
	"#FF3399", "#CCFF33", "#9966FF", "#FF3300", "#66FFCC",
}

// StoreConfig bounds the store's memory use.
type StoreConfig struct {
	MaxSeries             int // Concurrent series before oldest-first eviction
	MaxPointsPerSeries    int // Window capacity per series
	MaxAllPointsPerSeries int // All-points log capacity per tag
}

// DefaultStoreConfig returns the stock capacities.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxSeries:             DefaultMaxSeries,
		MaxPointsPerSeries:    DefaultMaxPointsPerSeries,
		MaxAllPointsPerSeries: DefaultMaxAllPointsPerSeries,
	}
}

// PointStore is a thread-safe per-tag store of position points.
// One lock guards both maps so every read sees a consistent cross-tag state.
type PointStore struct {
	mu     sync.RWMutex
	cfg    StoreConfig
	series map[string]*TagSeries
	all    map[string]*Ring[PositionPoint]
}

// NewPointStore creates an empty store. Non-positive capacities fall back to
// the defaults.
func NewPointStore(cfg StoreConfig) *PointStore {
	def := DefaultStoreConfig()
	if cfg.MaxSeries <= 0 {
		cfg.MaxSeries = def.MaxSeries
	}
	if cfg.MaxPointsPerSeries <= 0 {
		cfg.MaxPointsPerSeries = def.MaxPointsPerSeries
	}
	if cfg.MaxAllPointsPerSeries <= 0 {
		cfg.MaxAllPointsPerSeries = def.MaxAllPointsPerSeries
	}
	if cfg.MaxAllPointsPerSeries > MaxAllPointsCeiling {
		cfg.MaxAllPointsPerSeries = MaxAllPointsCeiling
	}
	return &PointStore{
		cfg:    cfg,
		series: make(map[string]*TagSeries),
		all:    make(map[string]*Ring[PositionPoint]),
	}
}

// Config returns the capacities in effect.
func (s *PointStore) Config() StoreConfig {
	return s.cfg
}

// AddPositionPoint records p and runs the significance aggregation for its tag.
// It returns the newly confirmed point and true, or false when p was only
// buffered for a later aggregate.
//
// Points of one tag must arrive in non-decreasing timestamp order.
func (s *PointStore) AddPositionPoint(p PositionPoint) (PositionPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist, ok := s.all[p.TagID]
	if !ok {
		hist = NewRing[PositionPoint](s.cfg.MaxAllPointsPerSeries)
		s.all[p.TagID] = hist
	}
	hist.Push(p)

	ts, ok := s.series[p.TagID]
	if !ok {
		if len(s.series) >= s.cfg.MaxSeries {
			s.evictOldestLocked()
		}
		ts = &TagSeries{
			TagID:     p.TagID,
			FirstSeen: p.Timestamp,
			Color:     SeriesPalette[len(s.series)%len(SeriesPalette)],
		}
		s.series[p.TagID] = ts
	}
	ts.LastSeen = p.Timestamp

	out, confirmed := aggregate(ts, p)

	if over := len(ts.Points) - s.cfg.MaxPointsPerSeries; over > 0 {
		n := copy(ts.Points, ts.Points[over:])
		ts.Points = ts.Points[:n]
	}
	return out, confirmed
}

// aggregate appends either p or a synthesized significant point to the window.
func aggregate(ts *TagSeries, p PositionPoint) (PositionPoint, bool) {
	if len(ts.Points) == 0 {
		p.Significant = true
		ts.Points = append(ts.Points, p)
		return p, true
	}

	last := -1
	for i := len(ts.Points) - 1; i >= 0; i-- {
		if ts.Points[i].Significant {
			last = i
			break
		}
	}

	// The only significant point was trimmed out of the window.
	if last < 0 {
		synth := meanPoint(p, ts.Points)
		ts.Points = append(ts.Points, synth)
		return synth, true
	}

	anchor := ts.Points[last]
	var pending []PositionPoint
	for _, q := range ts.Points {
		if !q.Significant && !q.Timestamp.Before(anchor.Timestamp) {
			pending = append(pending, q)
		}
	}

	if len(pending) > 0 && p.Timestamp.Sub(anchor.Timestamp) > SignificanceGate {
		synth := meanPoint(p, pending)
		ts.Points = append(ts.Points, synth)
		return synth, true
	}

	p.Significant = false
	ts.Points = append(ts.Points, p)
	return PositionPoint{}, false
}

// meanPoint averages X/Y over pts; everything else comes from the trigger.
func meanPoint(trigger PositionPoint, pts []PositionPoint) PositionPoint {
	var sx, sy float64
	for _, q := range pts {
		sx += q.X
		sy += q.Y
	}
	n := float64(len(pts))
	out := trigger
	out.X = sx / n
	out.Y = sy / n
	out.Significant = true
	return out
}

func (s *PointStore) evictOldestLocked() {
	var oldest *TagSeries
	for _, ts := range s.series {
		if oldest == nil || ts.FirstSeen.Before(oldest.FirstSeen) ||
			(ts.FirstSeen.Equal(oldest.FirstSeen) && ts.TagID < oldest.TagID) {
			oldest = ts
		}
	}
	if oldest != nil {
		delete(s.series, oldest.TagID)
	}
}

// AllSeries returns a copy of every series, ordered by first sighting.
func (s *PointStore) AllSeries() []TagSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TagSeries, 0, len(s.series))
	for _, ts := range s.series {
		cp := *ts
		cp.Points = append([]PositionPoint(nil), ts.Points...)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeen.Equal(result[j].FirstSeen) {
			return result[i].TagID < result[j].TagID
		}
		return result[i].FirstSeen.Before(result[j].FirstSeen)
	})
	return result
}

// Snapshot returns the live view of every series, ordered by first sighting.
func (s *PointStore) Snapshot() []TagSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TagSnapshot, 0, len(s.series))
	for id, ts := range s.series {
		snap := TagSnapshot{
			TagID:     id,
			Color:     ts.Color,
			FirstSeen: ts.FirstSeen,
			LastSeen:  ts.LastSeen,
			Window:    len(ts.Points),
		}
		for i := len(ts.Points) - 1; i >= 0; i-- {
			if !ts.Points[i].Significant {
				continue
			}
			if !snap.HasLatest {
				snap.Latest, snap.HasLatest = ts.Points[i], true
			}
			snap.Significant++
		}
		if hist, ok := s.all[id]; ok {
			snap.Logged = hist.Len()
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeen.Equal(result[j].FirstSeen) {
			return result[i].TagID < result[j].TagID
		}
		return result[i].FirstSeen.Before(result[j].FirstSeen)
	})
	return result
}

// SignificantPoints returns the confirmed points of one tag, or of every tag
// when tagID is empty, sorted by timestamp.
func (s *PointStore) SignificantPoints(tagID string) []PositionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []PositionPoint
	collect := func(ts *TagSeries) {
		for _, p := range ts.Points {
			if p.Significant {
				result = append(result, p)
			}
		}
	}

	if tagID != "" {
		if ts, ok := s.series[tagID]; ok {
			collect(ts)
		}
	} else {
		for _, ts := range s.series {
			collect(ts)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// LatestSignificant returns the most recent confirmed point of a tag.
func (s *PointStore) LatestSignificant(tagID string) (PositionPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.series[tagID]
	if !ok {
		return PositionPoint{}, false
	}
	for i := len(ts.Points) - 1; i >= 0; i-- {
		if ts.Points[i].Significant {
			return ts.Points[i], true
		}
	}
	return PositionPoint{}, false
}

// XYHistory returns parallel timestamp/X/Y slices for a tag. With allPoints
// the full-resolution log is used, otherwise the significant window points.
func (s *PointStore) XYHistory(tagID string, allPoints bool) ([]time.Time, []float64, []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ts []time.Time
	var xs, ys []float64
	add := func(p PositionPoint) {
		ts = append(ts, p.Timestamp)
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}

	if allPoints {
		if hist, ok := s.all[tagID]; ok {
			hist.Each(add)
		}
		return ts, xs, ys
	}

	if series, ok := s.series[tagID]; ok {
		for _, p := range series.Points {
			if p.Significant {
				add(p)
			}
		}
	}
	return ts, xs, ys
}

// AllPoints returns a copy of a tag's full-resolution log, oldest first.
func (s *PointStore) AllPoints(tagID string) []PositionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if hist, ok := s.all[tagID]; ok {
		return hist.Values()
	}
	return nil
}

// TagIDs returns every tag with an all-points log, sorted.
func (s *PointStore) TagIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.all))
	for id := range s.all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SeriesCount returns the number of live series.
func (s *PointStore) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// Clear drops every series and log.
func (s *PointStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string]*TagSeries)
	s.all = make(map[string]*Ring[PositionPoint])
}
