package ams3d

import (
	"math"
	"testing"
)

func lp(x, y, z float64, id int) LabeledPoint {
	return LabeledPoint{X: x, Y: y, Z: z, ModeX: x, ModeY: y, ModeZ: z, CrownID: id}
}

func TestAssembleTileResults_OffsetsPerTile(t *testing.T) {
	results := []TileResult{
		{Row: 0, Col: 0, MaxID: 2, Points: []LabeledPoint{
			lp(1, 1, 10, 1), lp(2, 2, 11, 1), lp(3, 3, 12, 2), lp(4, 4, 5, 0),
		}},
		{Row: 0, Col: 1, MaxID: 1, Points: []LabeledPoint{
			lp(60, 1, 10, 1), lp(61, 1, 4, 0),
		}},
	}

	out := AssembleTileResults(results)
	if len(out) != 6 {
		t.Fatalf("expected 6 points, got %d", len(out))
	}

	// First tile keeps its IDs, second tile's IDs are shifted past them.
	wantIDs := []int{1, 1, 2, 4, 0, 0}
	for i, lp := range out {
		if lp.CrownID != wantIDs[i] {
			t.Errorf("point %d has crown %d, want %d", i, lp.CrownID, wantIDs[i])
		}
	}

	// Noise points come last, in tile order.
	if out[4].X != 4 || out[5].X != 61 {
		t.Errorf("noise points out of order: %+v, %+v", out[4], out[5])
	}
}

func TestAssembleTileResults_NoiseOnlyTileDoesNotAdvanceOffset(t *testing.T) {
	results := []TileResult{
		{Points: []LabeledPoint{lp(1, 1, 10, 1)}},
		{Points: []LabeledPoint{lp(2, 2, 3, 0)}},
		{Points: []LabeledPoint{lp(3, 3, 10, 1)}},
	}
	out := AssembleTileResults(results)
	// The first tile moves the offset to 2; the noise-only tile leaves it
	// there, so the third tile's crown 1 becomes 3.
	if out[0].CrownID != 1 || out[1].CrownID != 3 {
		t.Errorf("IDs after noise-only tile: got %d, %d; want 1, 3", out[0].CrownID, out[1].CrownID)
	}
}

func TestAssembleTileResults_Empty(t *testing.T) {
	if out := AssembleTileResults(nil); out != nil {
		t.Errorf("expected nil for no tiles, got %d points", len(out))
	}
	if out := AssembleTileResults([]TileResult{{}, {}}); out != nil {
		t.Errorf("expected nil for empty tiles, got %d points", len(out))
	}
}

func TestCompactCrownIDs(t *testing.T) {
	points := []LabeledPoint{
		lp(0, 0, 10, 5), lp(1, 0, 10, 0), lp(2, 0, 10, 9), lp(3, 0, 10, 5),
	}
	count := CompactCrownIDs(points)
	if count != 2 {
		t.Errorf("crown count = %d, want 2", count)
	}
	wantIDs := []int{1, 0, 2, 1}
	for i, p := range points {
		if p.CrownID != wantIDs[i] {
			t.Errorf("point %d renumbered to %d, want %d", i, p.CrownID, wantIDs[i])
		}
	}
}

func TestCompactCrownIDs_AlreadyDense(t *testing.T) {
	points := []LabeledPoint{lp(0, 0, 10, 1), lp(1, 0, 10, 2), lp(2, 0, 10, 1)}
	if count := CompactCrownIDs(points); count != 2 {
		t.Errorf("crown count = %d, want 2", count)
	}
	if points[0].CrownID != 1 || points[1].CrownID != 2 || points[2].CrownID != 1 {
		t.Errorf("dense IDs were disturbed: %+v", points)
	}
}

func TestCrownSummaries(t *testing.T) {
	points := []LabeledPoint{
		{X: 0, Y: 0, Z: 10, ModeZ: 11, CrownID: 1},
		{X: 2, Y: 4, Z: 14, ModeZ: 11, CrownID: 1},
		{X: 1, Y: 2, Z: 12, ModeZ: 11, CrownID: 1},
		{X: 50, Y: 50, Z: 20, ModeZ: 20, CrownID: 2},
		{X: 99, Y: 99, Z: 5, ModeZ: 5, CrownID: 0},
	}

	summaries := CrownSummaries(points)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	s := summaries[0]
	if s.CrownID != 1 || s.PointsCount != 3 {
		t.Fatalf("first summary: id=%d count=%d", s.CrownID, s.PointsCount)
	}
	if s.MinX != 0 || s.MaxX != 2 || s.MinY != 0 || s.MaxY != 4 || s.MinZ != 10 || s.MaxZ != 14 {
		t.Errorf("bounding box wrong: %+v", s)
	}
	if math.Abs(s.CentroidX-1) > 1e-12 || math.Abs(s.CentroidY-2) > 1e-12 || math.Abs(s.CentroidZ-12) > 1e-12 {
		t.Errorf("centroid (%v,%v,%v), want (1,2,12)", s.CentroidX, s.CentroidY, s.CentroidZ)
	}
	if math.Abs(s.ModeHeightMean-11) > 1e-12 {
		t.Errorf("mode height mean = %v, want 11", s.ModeHeightMean)
	}

	// Single-member crown: the 95th percentile is the only height.
	if got := summaries[1].HeightP95; got != 20 {
		t.Errorf("single-point P95 = %v, want 20", got)
	}
}

func TestCrownSummaries_SortedAndNoiseFree(t *testing.T) {
	points := []LabeledPoint{
		lp(0, 0, 10, 3), lp(1, 1, 10, 1), lp(2, 2, 10, 2), lp(3, 3, 10, 0),
	}
	summaries := CrownSummaries(points)
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	for i, s := range summaries {
		if s.CrownID != i+1 {
			t.Errorf("summary %d has crown %d, want %d", i, s.CrownID, i+1)
		}
	}
}

func TestCrownSummaries_Empty(t *testing.T) {
	if s := CrownSummaries(nil); len(s) != 0 {
		t.Errorf("expected no summaries, got %d", len(s))
	}
	noise := []LabeledPoint{lp(0, 0, 10, 0)}
	if s := CrownSummaries(noise); len(s) != 0 {
		t.Errorf("expected no summaries for noise-only cloud, got %d", len(s))
	}
}
