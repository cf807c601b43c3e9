package ams3d

import (
	"errors"
	"fmt"
	"runtime"
)

// Constants for segmentation configuration
const (
	// DefaultCrownDiameterToHeight is the default ratio of crown diameter
	// to tree height used to size the kernel cylinder radius.
	DefaultCrownDiameterToHeight = 0.6
	// DefaultCrownHeightToHeight is the default ratio of crown height to
	// tree height used to size the kernel cylinder height.
	DefaultCrownHeightToHeight = 0.5
	// DefaultMaxIterations caps the number of kernel steps per point.
	DefaultMaxIterations = 200
	// DefaultConvergenceEpsilon is the step length (metres) below which the
	// kernel is considered to have reached a mode.
	DefaultConvergenceEpsilon = 0.01
	// DefaultMinHeight is the height cutoff (metres) below which returns
	// are treated as ground or understory and excluded.
	DefaultMinHeight = 2.0
	// DefaultCoreWidth is the default tile core edge length in metres.
	DefaultCoreWidth = 50.0
	// DefaultBufferWidth is the default tile buffer halo width in metres.
	DefaultBufferWidth = 15.0
	// DefaultClusterEps is the default mode-clustering neighborhood radius.
	DefaultClusterEps = 1.0
	// DefaultClusterMinPts is the default minimum neighbor count for a mode
	// to seed a crown cluster.
	DefaultClusterMinPts = 5
	// DefaultWorkerFraction is the default fraction of CPUs given to the
	// tile worker pool.
	DefaultWorkerFraction = 1.0
)

// KernelVariant selects which adaptive kernel the mean-shift engine runs.
// The variant is resolved once per call; the inner loop dispatches on it.
type KernelVariant int

const (
	// KernelClassic reproduces the published AMS3D kernel: a cylinder
	// symmetric about the centroid with an asymmetric Epanechnikov mask
	// selecting the upper three quarters.
	KernelClassic KernelVariant = iota
	// KernelImproved uses a symmetric cylinder shifted upward by h/6 with
	// a plain Epanechnikov profile. Same canopy bias, branch-free.
	KernelImproved
)

// String returns the flag-friendly name of the variant.
func (v KernelVariant) String() string {
	switch v {
	case KernelClassic:
		return "classic"
	case KernelImproved:
		return "improved"
	default:
		return fmt.Sprintf("KernelVariant(%d)", int(v))
	}
}

// ParseKernelVariant converts a flag value into a KernelVariant.
func ParseKernelVariant(s string) (KernelVariant, error) {
	switch s {
	case "classic":
		return KernelClassic, nil
	case "improved":
		return KernelImproved, nil
	default:
		return 0, fmt.Errorf("unknown kernel variant %q (want classic or improved)", s)
	}
}

// StitchStrategy selects how per-tile results are filtered down to the
// tile core before cross-tile assembly. Two strategies exist; neither is
// silently preferred, the caller chooses.
type StitchStrategy int

const (
	// StitchClusterCenter retains clustered points whose cluster centre
	// (mean of member modes) lies inside the tile core, and unclustered
	// points whose own mode lies inside the core. Robust default.
	StitchClusterCenter StitchStrategy = iota
	// StitchRoundedMode retains points whose mode, rounded to the nearest
	// metre, lies inside the tile core. Coarser, cheaper alternative.
	StitchRoundedMode
)

// String returns the flag-friendly name of the strategy.
func (s StitchStrategy) String() string {
	switch s {
	case StitchClusterCenter:
		return "cluster-center"
	case StitchRoundedMode:
		return "rounded-mode"
	default:
		return fmt.Sprintf("StitchStrategy(%d)", int(s))
	}
}

// ParseStitchStrategy converts a flag value into a StitchStrategy.
func ParseStitchStrategy(s string) (StitchStrategy, error) {
	switch s {
	case "cluster-center":
		return StitchClusterCenter, nil
	case "rounded-mode":
		return StitchRoundedMode, nil
	default:
		return 0, fmt.Errorf("unknown stitch strategy %q (want cluster-center or rounded-mode)", s)
	}
}

// ErrInvalidConfig is wrapped by all configuration validation failures.
var ErrInvalidConfig = errors.New("invalid segmentation config")

// Params holds the full configuration for a segmentation run. The zero
// value is not usable; start from DefaultParams and override.
type Params struct {
	// CrownDiameterToHeight scales the kernel cylinder radius with the
	// centroid height: r = CrownDiameterToHeight * z / 2.
	CrownDiameterToHeight float64
	// CrownHeightToHeight scales the kernel cylinder height with the
	// centroid height: h = CrownHeightToHeight * z (Classic) or
	// CrownHeightToHeight * z * 0.75 (Improved).
	CrownHeightToHeight float64

	// MaxIterations caps kernel steps per point. Hitting the cap is not an
	// error; the last centroid is emitted as the mode.
	MaxIterations int
	// ConvergenceEpsilon is the step threshold (metres) that stops the
	// kernel iteration.
	ConvergenceEpsilon float64

	// Kernel selects the Classic or Improved kernel variant.
	Kernel KernelVariant
	// UniformKernel disables distance weighting inside the cylinder so
	// every neighbor contributes equally. Classic variant only.
	UniformKernel bool

	// MinHeight drops returns below this height before mean shift.
	MinHeight float64

	// CoreWidth and BufferWidth control the tiling geometry.
	CoreWidth   float64
	BufferWidth float64

	// ClusterEps and ClusterMinPts parameterise the density-based
	// clustering of mode positions into crowns.
	ClusterEps    float64
	ClusterMinPts int

	// Stitch selects the cross-tile retention strategy.
	Stitch StitchStrategy

	// WorkerFraction sets the worker pool size to
	// max(1, floor(WorkerFraction * NumCPU)).
	WorkerFraction float64

	// Progress, when non-nil, is invoked after each completed tile with
	// (tilesDone, tilesTotal). Called from worker goroutines. Excluded
	// from serialization.
	Progress func(done, total int) `json:"-"`
}

// DefaultParams returns the parameter set used when no tuning is supplied.
func DefaultParams() Params {
	return Params{
		CrownDiameterToHeight: DefaultCrownDiameterToHeight,
		CrownHeightToHeight:   DefaultCrownHeightToHeight,
		MaxIterations:         DefaultMaxIterations,
		ConvergenceEpsilon:    DefaultConvergenceEpsilon,
		Kernel:                KernelClassic,
		MinHeight:             DefaultMinHeight,
		CoreWidth:             DefaultCoreWidth,
		BufferWidth:           DefaultBufferWidth,
		ClusterEps:            DefaultClusterEps,
		ClusterMinPts:         DefaultClusterMinPts,
		Stitch:                StitchClusterCenter,
		WorkerFraction:        DefaultWorkerFraction,
	}
}

// Validate reports the first configuration error found, wrapped in
// ErrInvalidConfig. It runs before any work is dispatched.
func (p Params) Validate() error {
	switch {
	case p.CrownDiameterToHeight <= 0:
		return fmt.Errorf("%w: crown_diameter_to_height must be > 0, got %v", ErrInvalidConfig, p.CrownDiameterToHeight)
	case p.CrownHeightToHeight <= 0:
		return fmt.Errorf("%w: crown_height_to_height must be > 0, got %v", ErrInvalidConfig, p.CrownHeightToHeight)
	case p.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfig, p.MaxIterations)
	case p.ConvergenceEpsilon < 0:
		return fmt.Errorf("%w: convergence_epsilon must be >= 0, got %v", ErrInvalidConfig, p.ConvergenceEpsilon)
	case p.MinHeight < 0:
		return fmt.Errorf("%w: min_height must be >= 0, got %v", ErrInvalidConfig, p.MinHeight)
	case p.CoreWidth <= 0:
		return fmt.Errorf("%w: core_width must be > 0, got %v", ErrInvalidConfig, p.CoreWidth)
	case p.BufferWidth < 0:
		return fmt.Errorf("%w: buffer_width must be >= 0, got %v", ErrInvalidConfig, p.BufferWidth)
	case p.ClusterEps <= 0:
		return fmt.Errorf("%w: cluster_eps must be > 0, got %v", ErrInvalidConfig, p.ClusterEps)
	case p.ClusterMinPts < 1:
		return fmt.Errorf("%w: cluster_min_pts must be >= 1, got %d", ErrInvalidConfig, p.ClusterMinPts)
	case p.Kernel != KernelClassic && p.Kernel != KernelImproved:
		return fmt.Errorf("%w: unknown kernel variant %d", ErrInvalidConfig, int(p.Kernel))
	case p.UniformKernel && p.Kernel != KernelClassic:
		return fmt.Errorf("%w: uniform kernel is only available with the classic variant", ErrInvalidConfig)
	case p.Stitch != StitchClusterCenter && p.Stitch != StitchRoundedMode:
		return fmt.Errorf("%w: unknown stitch strategy %d", ErrInvalidConfig, int(p.Stitch))
	case p.WorkerFraction <= 0:
		return fmt.Errorf("%w: worker_fraction must be > 0, got %v", ErrInvalidConfig, p.WorkerFraction)
	}
	return nil
}

// Workers returns the worker pool size implied by WorkerFraction.
func (p Params) Workers() int {
	n := int(p.WorkerFraction * float64(runtime.NumCPU()))
	if n < 1 {
		n = 1
	}
	return n
}
