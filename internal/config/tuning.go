// Package config loads segmentation tuning parameters from JSON files.
// Fields omitted from a file keep their defaults, so partial configs are
// safe to ship and to merge over DefaultParams.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/canopy.report/internal/ams3d"
)

// TuningConfig is the on-disk schema for segmentation parameters. Every
// field is a pointer so that absent keys are distinguishable from zero
// values.
type TuningConfig struct {
	// Kernel geometry
	CrownDiameterToHeight *float64 `json:"crown_diameter_to_height,omitempty"`
	CrownHeightToHeight   *float64 `json:"crown_height_to_height,omitempty"`
	Kernel                *string  `json:"kernel,omitempty"`
	UniformKernel         *bool    `json:"uniform_kernel,omitempty"`

	// Iteration control
	MaxIterations      *int     `json:"max_iterations,omitempty"`
	ConvergenceEpsilon *float64 `json:"convergence_epsilon,omitempty"`

	// Filtering and tiling
	MinHeight   *float64 `json:"min_height,omitempty"`
	CoreWidth   *float64 `json:"core_width,omitempty"`
	BufferWidth *float64 `json:"buffer_width,omitempty"`

	// Mode clustering
	ClusterEps    *float64 `json:"cluster_eps,omitempty"`
	ClusterMinPts *int     `json:"cluster_min_pts,omitempty"`

	// Stitching and scheduling
	Stitch         *string  `json:"stitch,omitempty"`
	WorkerFraction *float64 `json:"worker_fraction,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the size cap.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// Apply copies the set fields of the config onto p. Name fields (kernel,
// stitch) are parsed; the merged result is validated by the caller.
func (c *TuningConfig) Apply(p *ams3d.Params) error {
	if c.CrownDiameterToHeight != nil {
		p.CrownDiameterToHeight = *c.CrownDiameterToHeight
	}
	if c.CrownHeightToHeight != nil {
		p.CrownHeightToHeight = *c.CrownHeightToHeight
	}
	if c.Kernel != nil {
		kernel, err := ams3d.ParseKernelVariant(*c.Kernel)
		if err != nil {
			return err
		}
		p.Kernel = kernel
	}
	if c.UniformKernel != nil {
		p.UniformKernel = *c.UniformKernel
	}
	if c.MaxIterations != nil {
		p.MaxIterations = *c.MaxIterations
	}
	if c.ConvergenceEpsilon != nil {
		p.ConvergenceEpsilon = *c.ConvergenceEpsilon
	}
	if c.MinHeight != nil {
		p.MinHeight = *c.MinHeight
	}
	if c.CoreWidth != nil {
		p.CoreWidth = *c.CoreWidth
	}
	if c.BufferWidth != nil {
		p.BufferWidth = *c.BufferWidth
	}
	if c.ClusterEps != nil {
		p.ClusterEps = *c.ClusterEps
	}
	if c.ClusterMinPts != nil {
		p.ClusterMinPts = *c.ClusterMinPts
	}
	if c.Stitch != nil {
		stitch, err := ams3d.ParseStitchStrategy(*c.Stitch)
		if err != nil {
			return err
		}
		p.Stitch = stitch
	}
	if c.WorkerFraction != nil {
		p.WorkerFraction = *c.WorkerFraction
	}
	return nil
}
