package ams3d

import (
	"math"
	"sort"
)

// Tile is one cell of the buffered core tiling. The core regions of all
// tiles are disjoint and half-open ([min, max) on both axes); the buffered
// region extends the core by the buffer width on every side and overlaps
// the neighboring tiles so that kernels near a core edge still see their
// full neighborhood.
type Tile struct {
	Row, Col int

	CoreMinX, CoreMinY float64
	CoreMaxX, CoreMaxY float64
	BufferWidth        float64

	// Points holds every input point whose XY lies inside the buffered
	// region. InBuffer[i] is true iff Points[i] lies outside the core.
	Points   []Point
	InBuffer []bool
}

// CoreContains reports whether (x, y) lies inside the tile's core region.
func (t *Tile) CoreContains(x, y float64) bool {
	return x >= t.CoreMinX && x < t.CoreMaxX &&
		y >= t.CoreMinY && y < t.CoreMaxY
}

// bufferedContains reports whether (x, y) lies inside the buffered region.
func (t *Tile) bufferedContains(x, y float64) bool {
	b := t.BufferWidth
	return x >= t.CoreMinX-b && x < t.CoreMaxX+b &&
		y >= t.CoreMinY-b && y < t.CoreMaxY+b
}

// SplitCloudBuffered partitions a cloud into core tiles with buffer halos.
// Core tiles are aligned to a grid whose origin is the bounding box
// minimum snapped down to a multiple of coreWidth. Every finite point
// lands in exactly one tile's core; it may additionally appear as a
// buffer point in up to eight neighboring tiles. Points with non-finite
// coordinates are dropped. Tiles are returned sorted by (Row, Col).
func SplitCloudBuffered(points []Point, coreWidth, bufferWidth float64) []Tile {
	if len(points) == 0 {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	for _, p := range points {
		if !finitePoint(p) {
			continue
		}
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
	}
	if math.IsInf(minX, 1) {
		return nil
	}

	originX := math.Floor(minX/coreWidth) * coreWidth
	originY := math.Floor(minY/coreWidth) * coreWidth

	type cell struct{ row, col int }
	tileAt := make(map[cell]int)
	var tiles []Tile

	// First pass: create a tile for every occupied core cell and assign
	// each point to its core tile.
	for _, p := range points {
		if !finitePoint(p) {
			continue
		}
		c := cell{
			row: int(math.Floor((p.Y - originY) / coreWidth)),
			col: int(math.Floor((p.X - originX) / coreWidth)),
		}
		ti, ok := tileAt[c]
		if !ok {
			ti = len(tiles)
			tileAt[c] = ti
			tiles = append(tiles, Tile{
				Row:         c.row,
				Col:         c.col,
				CoreMinX:    originX + float64(c.col)*coreWidth,
				CoreMinY:    originY + float64(c.row)*coreWidth,
				CoreMaxX:    originX + float64(c.col+1)*coreWidth,
				CoreMaxY:    originY + float64(c.row+1)*coreWidth,
				BufferWidth: bufferWidth,
			})
		}
		tiles[ti].Points = append(tiles[ti].Points, p)
		tiles[ti].InBuffer = append(tiles[ti].InBuffer, false)
	}

	// Second pass: copy points into the buffer strips of the 8-connected
	// neighbors that exist. Cells without core points get no tile, so
	// copies toward absent neighbors are dropped.
	if bufferWidth > 0 {
		for _, p := range points {
			if !finitePoint(p) {
				continue
			}
			row := int(math.Floor((p.Y - originY) / coreWidth))
			col := int(math.Floor((p.X - originX) / coreWidth))
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					ti, ok := tileAt[cell{row: row + dr, col: col + dc}]
					if !ok {
						continue
					}
					t := &tiles[ti]
					if t.bufferedContains(p.X, p.Y) {
						t.Points = append(t.Points, p)
						t.InBuffer = append(t.InBuffer, true)
					}
				}
			}
		}
	}

	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Row != tiles[j].Row {
			return tiles[i].Row < tiles[j].Row
		}
		return tiles[i].Col < tiles[j].Col
	})
	return tiles
}

func finitePoint(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}
