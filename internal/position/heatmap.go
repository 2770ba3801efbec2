package position

import "math"

const (
	DefaultGridSize     = 13
	DefaultMeterPerCell = 1.0
)

// CellIndex maps a coordinate to its heatmap cell along one axis. Halves round
// to even. ok is false when the cell falls outside the grid or coord is not
// finite.
func CellIndex(coord, meterPerCell float64, gridSize int) (idx int, ok bool) {
	if !isFinite(coord) || meterPerCell <= 0 {
		return 0, false
	}
	f := math.RoundToEven(coord/meterPerCell) + float64(gridSize/2)
	if f < 0 || f >= float64(gridSize) {
		return 0, false
	}
	return int(f), true
}

// HeatmapMatrix bins every logged point of every tag into a gridSize x
// gridSize matrix centered on the reader, indexed [y][x]. Points outside the
// grid are dropped.
func (s *PointStore) HeatmapMatrix(gridSize int, meterPerCell float64) [][]int {
	if gridSize < 1 {
		gridSize = DefaultGridSize
	}
	matrix := make([][]int, gridSize)
	for i := range matrix {
		matrix[i] = make([]int, gridSize)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, hist := range s.all {
		hist.Each(func(p PositionPoint) {
			xi, okX := CellIndex(p.X, meterPerCell, gridSize)
			yi, okY := CellIndex(p.Y, meterPerCell, gridSize)
			if okX && okY {
				matrix[yi][xi]++
			}
		})
	}
	return matrix
}

// MatrixMax returns the largest cell count.
func MatrixMax(m [][]int) int {
	maxV := 0
	for _, row := range m {
		for _, v := range row {
			if v > maxV {
				maxV = v
			}
		}
	}
	return maxV
}
