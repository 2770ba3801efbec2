package position

import (
	"math"
	"time"
)

// RawAngularReading is one directionality observation reported by the reader.
type RawAngularReading struct {
	TagID     string
	Azimuth   float64 // Degrees
	Elevation float64 // Degrees
	Timestamp time.Time
	RSSI      *float64 // dBm, nil when the frame carried none
	Antenna   *int
}

// PositionPoint is a Cartesian fix for a tag, either converted from a single
// reading or synthesized by averaging several of them.
type PositionPoint struct {
	TagID       string
	X           float64 // Meters
	Y           float64 // Meters
	Z           float64 // Meters
	Timestamp   time.Time
	Significant bool
	Azimuth     float64 // Source azimuth in degrees
	Elevation   float64 // Source elevation in degrees
}

// Angle returns the bearing of the point from the reader in radians,
// 0=north (+Y), increasing clockwise.
func (p PositionPoint) Angle() float64 {
	a := math.Atan2(p.X, p.Y)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// GroundDistance returns the horizontal distance from the reader in meters.
func (p PositionPoint) GroundDistance() float64 {
	return math.Hypot(p.X, p.Y)
}

// Finite reports whether all coordinates are finite numbers.
func (p PositionPoint) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TagSeries is the windowed history of one tag. Points mixes significant and
// pending fixes in arrival order.
type TagSeries struct {
	TagID     string
	Points    []PositionPoint
	FirstSeen time.Time
	LastSeen  time.Time
	Color     string
}

// Significant returns only the confirmed points of the window.
func (s *TagSeries) Significant() []PositionPoint {
	out := make([]PositionPoint, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Significant {
			out = append(out, p)
		}
	}
	return out
}

// TagStats summarizes one tag for the statistics view.
type TagStats struct {
	TagID        string
	TotalPoints  int // Entries in the all-points log
	WindowPoints int
	Significant  int // Significant points currently in the window
	MeanX        float64
	MeanY        float64
	StdDevX      float64
	StdDevY      float64
	FirstSeen    time.Time
	LastSeen     time.Time
	HasSeries    bool // False once the series was evicted; the log survives
}

// TagSnapshot is the live view of one tracked tag.
type TagSnapshot struct {
	TagID       string
	Color       string
	FirstSeen   time.Time
	LastSeen    time.Time
	Latest      PositionPoint // Most recent confirmed point, valid when HasLatest
	HasLatest   bool
	Window      int // Points in the window
	Significant int // Confirmed points in the window
	Logged      int // Entries in the all-points log
}
