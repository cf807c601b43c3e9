package ams3d

import (
	"context"
	"math"
	"sort"
)

// MeanShift moves an adaptive kernel from every input point to its local
// density mode and returns one ModedPoint per input point, in input order.
//
// The neighbor scan is accelerated by a uniform grid keyed on the largest
// possible kernel radius; the result is numerically identical to a naive
// scan over all points. The outer per-point loop honors ctx cancellation;
// a cancelled run returns ctx.Err() and no partial result.
func MeanShift(ctx context.Context, points []Point, p Params) ([]ModedPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	// The kernel centroid's Z is always a weighted mean of input heights,
	// so no iteration can produce a radius above rMax. Indexing at rMax
	// keeps every neighborhood inside a 3x3 cell scan.
	zMax := points[0].Z
	for _, pt := range points[1:] {
		if pt.Z > zMax {
			zMax = pt.Z
		}
	}
	rMax := p.CrownDiameterToHeight * zMax * 0.5

	index := newSpatialIndex(rMax)
	index.buildXY(points)

	out := make([]ModedPoint, len(points))
	scratch := make([]int, 0, 64)

	for i, pt := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mx, my, mz := shiftToMode(points, index, p, pt, &scratch)
		out[i] = ModedPoint{
			X: pt.X, Y: pt.Y, Z: pt.Z,
			ModeX: mx, ModeY: my, ModeZ: mz,
		}
	}
	return out, nil
}

// shiftToMode iterates the kernel from start until the step drops below
// ConvergenceEpsilon, the neighborhood empties, or MaxIterations is
// reached. Hitting the cap is not an error: the last centroid stands.
func shiftToMode(points []Point, index *spatialIndex, p Params, start Point, scratch *[]int) (float64, float64, float64) {
	cx, cy, cz := start.X, start.Y, start.Z

	for iter := 0; iter < p.MaxIterations; iter++ {
		ox, oy, oz := cx, cy, cz
		geom := geometryAt(p.Kernel, p, cz)

		var sumX, sumY, sumZ, sumW float64
		*scratch = index.candidates(cx, cy, (*scratch)[:0])
		// Accumulate in ascending point order so the sums are bit-identical
		// to a naive scan over the whole array.
		sort.Ints(*scratch)
		for _, j := range *scratch {
			n := points[j]
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
			// Empty neighborhood: the previous centroid is the mode.
			return ox, oy, oz
		}

		cx = sumX / sumW
		cy = sumY / sumW
		cz = sumZ / sumW

		if stepConverged(p.ConvergenceEpsilon, cx-ox, cy-oy, cz-oz) {
			break
		}
	}
	return cx, cy, cz
}

// neighborWeight computes the combined kernel weight of neighbor n for a
// kernel centred at (cx, cy, cz) with the given geometry.
func neighborWeight(p Params, geom kernelGeometry, cx, cy, cz float64, n Point) float64 {
	if p.UniformKernel {
		return 1
	}
	var vertical float64
	switch p.Kernel {
	case KernelImproved:
		vertical = verticalWeightImproved(n.Z, geom.CenterZ, geom.Height)
	default:
		vertical = verticalWeightClassic(geom.Height, cz, n.Z)
	}
	return vertical * horizontalWeight(geom.Radius, cx, cy, n.X, n.Y)
}

// stepConverged reports whether the Euclidean length of one kernel step
// is within the convergence threshold.
func stepConverged(eps, dx, dy, dz float64) bool {
	return math.Sqrt(dx*dx+dy*dy+dz*dz) <= eps
}
