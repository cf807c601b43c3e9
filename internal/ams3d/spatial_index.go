package ams3d

import "math"

// EstimatedPointsPerCell is used for initial spatial index capacity estimation
const EstimatedPointsPerCell = 4

// spatialIndex provides efficient neighborhood candidate queries over the
// XY plane using a regular grid. The cell size must be at least as large
// as the largest query radius so that a 3x3 cell scan covers every
// neighborhood; callers apply their own exact distance test to the
// returned candidates.
type spatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // Cell ID → point indices
}

// newSpatialIndex creates a spatial index with the specified cell size.
// A non-positive cell size is clamped to 1 so that degenerate inputs
// (e.g. every point at z = 0) still index cleanly.
func newSpatialIndex(cellSize float64) *spatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &spatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// buildXY populates the index from point XY positions.
func (si *spatialIndex) buildXY(points []Point) {
	si.Grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)
	for i, p := range points {
		si.Grid[si.cellID(p.X, p.Y)] = append(si.Grid[si.cellID(p.X, p.Y)], i)
	}
}

// buildModes populates the index from mode XY positions.
func (si *spatialIndex) buildModes(points []ModedPoint) {
	si.Grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)
	for i, p := range points {
		si.Grid[si.cellID(p.ModeX, p.ModeY)] = append(si.Grid[si.cellID(p.ModeX, p.ModeY)], i)
	}
}

// pairCells maps signed cell coordinates to a unique non-negative ID via
// zigzag encoding and Szudzik's pairing function.
func pairCells(cellX, cellY int64) int64 {
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func (si *spatialIndex) cellID(x, y float64) int64 {
	return pairCells(int64(math.Floor(x/si.CellSize)), int64(math.Floor(y/si.CellSize)))
}

// candidates appends to dst the indices of all points stored in the 3x3
// block of cells around (x, y) and returns the extended slice. The result
// order is deterministic: cells are visited in fixed dx/dy order and each
// cell holds indices in ascending build order.
func (si *spatialIndex) candidates(x, y float64, dst []int) []int {
	cellX := int64(math.Floor(x / si.CellSize))
	cellY := int64(math.Floor(y / si.CellSize))
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			dst = append(dst, si.Grid[pairCells(cellX+dx, cellY+dy)]...)
		}
	}
	return dst
}
