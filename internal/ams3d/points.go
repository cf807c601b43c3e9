package ams3d

// Point represents a single LiDAR return in Cartesian world coordinates
// (metres). Points are immutable after ingestion.
type Point struct {
	X, Y, Z float64
}

// ModedPoint is a Point together with the coordinates of the density mode
// to which its mean-shift kernel converged.
type ModedPoint struct {
	X, Y, Z             float64
	ModeX, ModeY, ModeZ float64
}

// LabeledPoint is a ModedPoint with a crown identifier. CrownID 0 is
// reserved for noise (points whose mode does not belong to any dense
// cluster); IDs > 0 denote individual tree crowns and are globally unique
// across the whole cloud after assembly.
type LabeledPoint struct {
	X, Y, Z             float64
	ModeX, ModeY, ModeZ float64
	CrownID             int
}

// CrownSummary aggregates per-crown statistics computed during assembly.
type CrownSummary struct {
	CrownID     int
	PointsCount int

	// Centroid of the member points (not the modes).
	CentroidX, CentroidY, CentroidZ float64

	// Axis-aligned bounding box of the member points.
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	// HeightP95 is the 95th percentile of member point heights.
	HeightP95 float64

	// ModeHeightMean is the mean Z of the member modes, a proxy for the
	// crown's density peak elevation.
	ModeHeightMean float64
}
