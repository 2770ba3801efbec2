package radar

import (
	"math"

	"atr-radar.klederson.com/internal/config"
)

// Glyph for a ring segment, indexed by Sector.
var ringGlyphs = [8]rune{'-', '/', '|', '\\', '-', '/', '|', '\\'}

// NormalizeAngle wraps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Sector returns the nearest of the eight compass directions to a bearing:
// 0=N, 1=NE, 2=E ... 7=NW.
func Sector(a float64) int {
	return int(math.Round(NormalizeAngle(a)/(math.Pi/4))) % 8
}

// RingChar returns the character drawn for a ring at the given bearing.
func RingChar(angle float64) rune {
	return ringGlyphs[Sector(angle)]
}

// cellDelta is the offset of a cell from the center in column units,
// correcting rows for the terminal aspect ratio.
func cellDelta(col, row, centerX, centerY int) (dx, dy float64) {
	return float64(col - centerX), float64(row-centerY) / config.AspectRatio
}

// CellDistance computes the distance from a cell to the radar center.
func CellDistance(col, row, centerX, centerY int) float64 {
	dx, dy := cellDelta(col, row, centerX, centerY)
	return math.Hypot(dx, dy)
}

// CellAngle computes the bearing from center to a cell in radians,
// 0=north, increasing clockwise.
func CellAngle(col, row, centerX, centerY int) float64 {
	dx, dy := cellDelta(col, row, centerX, centerY)
	return NormalizeAngle(math.Atan2(dx, -dy))
}

// PolarToCell maps a bearing and a radius in column units to a cell.
func PolarToCell(angle, r float64, centerX, centerY int) (col, row int) {
	col = centerX + int(math.Round(r*math.Sin(angle)))
	row = centerY - int(math.Round(r*math.Cos(angle)*config.AspectRatio))
	return col, row
}

// MetersToRadius converts distance in meters to radar units (cells). Tags
// beyond maxRange are pinned to the edge.
func MetersToRadius(meters, maxRange, radarRadius float64) float64 {
	if maxRange <= 0 || meters > maxRange {
		return radarRadius
	}
	return (meters / maxRange) * radarRadius
}

// AutoRange returns the display range in meters: the smallest whole number of
// ring steps covering the farthest distance, never below minRange.
func AutoRange(farthest, minRange float64) float64 {
	if math.IsNaN(farthest) || math.IsInf(farthest, 0) || farthest <= minRange {
		return minRange
	}
	step := minRange / float64(config.RingCount)
	if step <= 0 {
		return farthest
	}
	return math.Ceil(farthest/step) * step
}
