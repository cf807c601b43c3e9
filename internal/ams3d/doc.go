// Package ams3d delineates individual tree crowns in airborne LiDAR point
// clouds using adaptive mean shift (AMS3D, Ferraz et al. 2012).
//
// Each return is drawn toward the local density mode inside a vertical
// cylinder whose radius and height scale with the centroid's height above
// ground; returns whose modes converge to the same dense neighborhood are
// labeled as one crown. Large clouds are split into core tiles with
// buffer halos and processed by a worker pool, then stitched back into a
// single globally consistent labeling.
//
// SegmentTreeCrowns is the top-level entry point; MeanShift,
// SplitCloudBuffered and LabelModes expose the individual stages.
package ams3d
