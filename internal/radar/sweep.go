package radar

import (
	"math"
	"time"

	"atr-radar.klederson.com/internal/config"
)

// Sweep is the rotating beam of the radar display.
type Sweep struct {
	Angle     float64 // Radians [0, 2π), 0=north, clockwise
	StartTime time.Time
}

// NewSweep creates a beam pointing north.
func NewSweep() *Sweep {
	return &Sweep{StartTime: time.Now()}
}

// Update moves the beam to where it should be now.
func (s *Sweep) Update() {
	s.UpdateAt(time.Now())
}

// UpdateAt moves the beam to its bearing at t, turning SweepSpeedRPM times a
// minute.
func (s *Sweep) UpdateAt(t time.Time) {
	turns := t.Sub(s.StartTime).Minutes() * config.SweepSpeedRPM
	s.Angle = NormalizeAngle(turns * 2 * math.Pi)
}

// Degrees returns the current beam bearing in degrees.
func (s *Sweep) Degrees() float64 {
	return s.Angle * 180 / math.Pi
}

// Intensity returns the afterglow in [0, 1] at a bearing: 1 under the beam,
// fading linearly to 0 at SweepTrailDeg behind it.
func (s *Sweep) Intensity(cellAngle float64) float64 {
	behind := NormalizeAngle(s.Angle - cellAngle)
	trail := config.SweepTrailDeg * math.Pi / 180
	if behind > trail {
		return 0
	}
	return 1 - behind/trail
}
