package position

import (
	"math"
	"sync"
)

// Default mounting geometry in meters.
const (
	DefaultReaderHeight = 3.0
	DefaultTagHeight    = 1.0
)

// Heights holds the mounting geometry used by the projection.
type Heights struct {
	Reader float64 // Reader height above floor (m)
	Tag    float64 // Expected tag height above floor (m)
}

// Calculator projects angular readings onto the floor plane.
// Heights may be changed at any time; the next conversion uses the new values.
type Calculator struct {
	mu      sync.RWMutex
	heights Heights
}

// NewCalculator creates a calculator for the given reader and tag heights.
func NewCalculator(readerHeight, tagHeight float64) *Calculator {
	return &Calculator{
		heights: Heights{Reader: readerHeight, Tag: tagHeight},
	}
}

// Heights returns the current mounting geometry.
func (c *Calculator) Heights() Heights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heights
}

// SetHeights replaces both heights.
func (c *Calculator) SetHeights(h Heights) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heights = h
}

// SetReaderHeight changes the reader height only.
func (c *Calculator) SetReaderHeight(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heights.Reader = m
}

// SetTagHeight changes the tag height only.
func (c *Calculator) SetTagHeight(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heights.Tag = m
}

// CalculatePosition converts a reading into a non-significant point.
//
// The projection is not clamped: elevations near ±90° or a tag mounted above
// the reader produce whatever tan() yields, including Inf and NaN.
func (c *Calculator) CalculatePosition(r RawAngularReading) PositionPoint {
	h := c.Heights()
	x, y := Project(r.Azimuth, r.Elevation, h.Reader-h.Tag)

	return PositionPoint{
		TagID:     r.TagID,
		X:         x,
		Y:         y,
		Z:         h.Tag,
		Timestamp: r.Timestamp,
		Azimuth:   r.Azimuth,
		Elevation: r.Elevation,
	}
}

// Project maps azimuth/elevation (degrees) to floor coordinates for an object
// objectHeight meters below the reader.
// Formula: ground = h * tan(el); x = ground * sin(az); y = ground * cos(az)
func Project(azimuthDeg, elevationDeg, objectHeight float64) (x, y float64) {
	az := azimuthDeg * math.Pi / 180
	el := elevationDeg * math.Pi / 180

	ground := objectHeight * math.Tan(el)
	return ground * math.Sin(az), ground * math.Cos(az)
}
