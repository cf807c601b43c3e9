package ams3d

import (
	"context"
	"math"
	"testing"
)

// towerParams is the configuration of the single-tower scenarios: kernel
// ratios from the reference publication's example and no height cutoff.
func towerParams() Params {
	p := DefaultParams()
	p.CrownDiameterToHeight = 0.5
	p.CrownHeightToHeight = 1.0
	p.MinHeight = 0
	p.ClusterEps = 1.0
	p.ClusterMinPts = 1
	return p
}

func TestMeanShift_EmptyInput(t *testing.T) {
	modes, err := MeanShift(context.Background(), nil, DefaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if modes != nil {
		t.Errorf("expected nil output for empty input, got %d modes", len(modes))
	}
}

func TestMeanShift_InvalidConfig(t *testing.T) {
	p := DefaultParams()
	p.CoreWidth = 0
	if _, err := MeanShift(context.Background(), []Point{{0, 0, 10}}, p); err == nil {
		t.Fatal("expected config error")
	}
}

func TestMeanShift_SingleTower(t *testing.T) {
	points := []Point{{0, 0, 10}, {0, 0, 11}, {0, 0, 12}}

	for _, variant := range []KernelVariant{KernelClassic, KernelImproved} {
		p := towerParams()
		p.Kernel = variant

		modes, err := MeanShift(context.Background(), points, p)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", variant, err)
		}
		if len(modes) != 3 {
			t.Fatalf("%v: expected 3 modes, got %d", variant, len(modes))
		}

		// All three kernels see the same neighborhood and must converge to
		// (nearly) the same mode.
		for i := 1; i < 3; i++ {
			d := modeDistance(modes[0], modes[i])
			if d > 0.1 {
				t.Errorf("%v: modes 0 and %d are %v apart, want <= 0.1", variant, i, d)
			}
		}

		// The original points must pass through unchanged.
		for i, m := range modes {
			if m.X != points[i].X || m.Y != points[i].Y || m.Z != points[i].Z {
				t.Errorf("%v: mode %d lost its source point: %+v", variant, i, m)
			}
		}
	}
}

func TestMeanShift_IsolatedPointKeepsPosition(t *testing.T) {
	// A lone point's kernel contains only itself, so the centroid update is
	// the identity and the mode equals the input.
	points := []Point{{3, 4, 10}}
	modes, err := MeanShift(context.Background(), points, towerParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := modes[0]
	if math.Abs(m.ModeX-3) > 1e-9 || math.Abs(m.ModeY-4) > 1e-9 || math.Abs(m.ModeZ-10) > 1e-9 {
		t.Errorf("isolated point moved: mode (%v,%v,%v)", m.ModeX, m.ModeY, m.ModeZ)
	}
}

func TestMeanShift_TwoSeparatedTowers(t *testing.T) {
	points := []Point{{0, 0, 10}, {100, 0, 10}}
	modes, err := MeanShift(context.Background(), points, towerParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := modeDistance(modes[0], modes[1])
	if d <= 50 {
		t.Errorf("well-separated towers produced modes only %v apart", d)
	}
}

func TestMeanShift_IterationCap(t *testing.T) {
	// A single point converges in one step regardless; with MaxIterations=1
	// the emitted mode may differ from the input by at most one kernel step
	// and no error is raised.
	p := towerParams()
	p.MaxIterations = 1

	modes, err := MeanShift(context.Background(), []Point{{0, 0, 1000}}, p)
	if err != nil {
		t.Fatalf("non-convergence must not be an error: %v", err)
	}
	m := modes[0]
	if math.Abs(m.ModeX) > 1e-9 || math.Abs(m.ModeY) > 1e-9 || math.Abs(m.ModeZ-1000) > 1e-6 {
		t.Errorf("single-point step should be the identity, got (%v,%v,%v)", m.ModeX, m.ModeY, m.ModeZ)
	}
}

func TestMeanShift_TranslationInvariance(t *testing.T) {
	points := clusteredCloud(0, 0)
	const dx, dy = 1000.5, -250.25
	shifted := make([]Point, len(points))
	for i, pt := range points {
		shifted[i] = Point{X: pt.X + dx, Y: pt.Y + dy, Z: pt.Z}
	}

	p := towerParams()
	base, err := MeanShift(context.Background(), points, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	moved, err := MeanShift(context.Background(), shifted, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Tolerance covers one extra kernel step in case rounding flips the
	// convergence test at the threshold.
	const tol = 0.02
	for i := range base {
		if math.Abs(moved[i].ModeX-base[i].ModeX-dx) > tol ||
			math.Abs(moved[i].ModeY-base[i].ModeY-dy) > tol ||
			math.Abs(moved[i].ModeZ-base[i].ModeZ) > tol {
			t.Errorf("mode %d not translation invariant: base (%v,%v,%v), moved (%v,%v,%v)",
				i, base[i].ModeX, base[i].ModeY, base[i].ModeZ,
				moved[i].ModeX, moved[i].ModeY, moved[i].ModeZ)
		}
	}
}

func TestMeanShift_GridMatchesNaiveScan(t *testing.T) {
	points := append(clusteredCloud(0, 0), clusteredCloud(30, 12)...)

	for _, variant := range []KernelVariant{KernelClassic, KernelImproved} {
		p := towerParams()
		p.Kernel = variant

		fast, err := MeanShift(context.Background(), points, p)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", variant, err)
		}
		slow := naiveMeanShift(points, p)

		for i := range fast {
			if fast[i] != slow[i] {
				t.Errorf("%v: mode %d differs from naive scan: %+v vs %+v", variant, i, fast[i], slow[i])
			}
		}
	}
}

func TestMeanShift_UniformKernel(t *testing.T) {
	points := []Point{{0, 0, 10}, {0, 0, 11}, {0, 0, 12}}
	p := towerParams()
	p.UniformKernel = true

	modes, err := MeanShift(context.Background(), points, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// With unit weights the first step lands on the plain mean of the
	// cylinder members; all three still collapse to one mode.
	for i := 1; i < 3; i++ {
		if d := modeDistance(modes[0], modes[i]); d > 0.1 {
			t.Errorf("uniform kernel modes diverge: %v apart", d)
		}
	}
}

func TestMeanShift_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MeanShift(ctx, clusteredCloud(0, 0), towerParams())
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// naiveMeanShift is the O(N²·I) reference implementation the grid-indexed
// engine must match exactly.
func naiveMeanShift(points []Point, p Params) []ModedPoint {
	out := make([]ModedPoint, len(points))
	for i, pt := range points {
		cx, cy, cz := pt.X, pt.Y, pt.Z
		for iter := 0; iter < p.MaxIterations; iter++ {
			ox, oy, oz := cx, cy, cz
			geom := geometryAt(p.Kernel, p, cz)

			var sumX, sumY, sumZ, sumW float64
			for _, n := range points {
				if !inCylinder(n.X, n.Y, n.Z, geom.Radius, geom.Height, cx, cy, geom.CenterZ) {
					continue
				}
				w := neighborWeight(p, geom, cx, cy, cz, n)
				sumX += w * n.X
				sumY += w * n.Y
				sumZ += w * n.Z
				sumW += w
			}
			if sumW == 0 {
				cx, cy, cz = ox, oy, oz
				break
			}
			cx, cy, cz = sumX/sumW, sumY/sumW, sumZ/sumW
			if stepConverged(p.ConvergenceEpsilon, cx-ox, cy-oy, cz-oz) {
				break
			}
		}
		out[i] = ModedPoint{X: pt.X, Y: pt.Y, Z: pt.Z, ModeX: cx, ModeY: cy, ModeZ: cz}
	}
	return out
}

// clusteredCloud builds a small tree-like cluster of returns around
// (cx, cy) with heights between 8 and 12 metres.
func clusteredCloud(cx, cy float64) []Point {
	return []Point{
		{cx, cy, 12},
		{cx + 0.5, cy, 11},
		{cx - 0.5, cy, 11},
		{cx, cy + 0.5, 10.5},
		{cx, cy - 0.5, 10.5},
		{cx + 0.8, cy + 0.8, 9},
		{cx - 0.8, cy - 0.8, 9},
		{cx + 1.0, cy - 0.5, 8},
	}
}

func modeDistance(a, b ModedPoint) float64 {
	dx := a.ModeX - b.ModeX
	dy := a.ModeY - b.ModeY
	dz := a.ModeZ - b.ModeZ
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func BenchmarkMeanShift(b *testing.B) {
	var points []Point
	for i := 0; i < 20; i++ {
		points = append(points, clusteredCloud(float64(i%5)*10, float64(i/5)*10)...)
	}
	p := towerParams()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MeanShift(context.Background(), points, p); err != nil {
			b.Fatal(err)
		}
	}
}
