package ams3d

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// AssembleTileResults concatenates per-tile results into one labeled
// cloud. Results must already be in tile-ID order (runTiles guarantees
// this); non-zero crown IDs are offset per tile so IDs from different
// tiles never collide, and crown ID 0 survives as the global noise label.
// Noise points are appended after all crowned points.
func AssembleTileResults(results []TileResult) []LabeledPoint {
	var out []LabeledPoint
	var noise []LabeledPoint

	offset := 0
	for _, res := range results {
		maxNew := 0
		for _, lp := range res.Points {
			if lp.CrownID == 0 {
				noise = append(noise, lp)
				continue
			}
			lp.CrownID += offset
			if lp.CrownID > maxNew {
				maxNew = lp.CrownID
			}
			out = append(out, lp)
		}
		if maxNew > 0 {
			offset = maxNew + 1
		}
	}

	return append(out, noise...)
}

// CompactCrownIDs renumbers non-zero crown IDs densely (1..k) in order of
// first appearance, in place, and returns the crown count. ID 0 is left
// untouched.
func CompactCrownIDs(points []LabeledPoint) int {
	remap := make(map[int]int)
	next := 0
	for i, lp := range points {
		if lp.CrownID == 0 {
			continue
		}
		id, ok := remap[lp.CrownID]
		if !ok {
			next++
			id = next
			remap[lp.CrownID] = id
		}
		points[i].CrownID = id
	}
	return next
}

// CrownSummaries computes per-crown aggregate statistics from a labeled
// cloud. Noise points (ID 0) are excluded. Summaries are sorted by crown
// ID.
func CrownSummaries(points []LabeledPoint) []CrownSummary {
	byCrown := make(map[int][]LabeledPoint)
	for _, lp := range points {
		if lp.CrownID == 0 {
			continue
		}
		byCrown[lp.CrownID] = append(byCrown[lp.CrownID], lp)
	}

	summaries := make([]CrownSummary, 0, len(byCrown))
	for id, members := range byCrown {
		summaries = append(summaries, summarizeCrown(id, members))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CrownID < summaries[j].CrownID
	})
	return summaries
}

func summarizeCrown(id int, members []LabeledPoint) CrownSummary {
	s := CrownSummary{
		CrownID:     id,
		PointsCount: len(members),
		MinX:        members[0].X, MaxX: members[0].X,
		MinY: members[0].Y, MaxY: members[0].Y,
		MinZ: members[0].Z, MaxZ: members[0].Z,
	}

	var sumX, sumY, sumZ, sumModeZ float64
	heights := make([]float64, len(members))
	for i, lp := range members {
		sumX += lp.X
		sumY += lp.Y
		sumZ += lp.Z
		sumModeZ += lp.ModeZ
		heights[i] = lp.Z

		if lp.X < s.MinX {
			s.MinX = lp.X
		}
		if lp.X > s.MaxX {
			s.MaxX = lp.X
		}
		if lp.Y < s.MinY {
			s.MinY = lp.Y
		}
		if lp.Y > s.MaxY {
			s.MaxY = lp.Y
		}
		if lp.Z < s.MinZ {
			s.MinZ = lp.Z
		}
		if lp.Z > s.MaxZ {
			s.MaxZ = lp.Z
		}
	}

	n := float64(len(members))
	s.CentroidX = sumX / n
	s.CentroidY = sumY / n
	s.CentroidZ = sumZ / n
	s.ModeHeightMean = sumModeZ / n

	sort.Float64s(heights)
	s.HeightP95 = stat.Quantile(0.95, stat.Empirical, heights, nil)
	return s
}
