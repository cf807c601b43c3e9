// Package crowndb persists segmentation runs, per-crown statistics and
// labeled point clouds in SQLite.
package crowndb

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/canopy.report/internal/ams3d"
)

type CrownDB struct {
	*sql.DB
}

// schema.sql defines tables for segmentation runs, per-crown statistics
// and the labeled point clouds they were computed from.
//
//go:embed schema.sql
var schemaSQL string

// Open opens (creating if necessary) the crown database at path and
// applies the schema.
func Open(path string) (*CrownDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply crown schema: %w", err)
	}
	return &CrownDB{db}, nil
}

// Run describes one recorded segmentation run.
type Run struct {
	RunID      string  `json:"run_id"`
	CreatedAt  float64 `json:"created_at"`
	SourceFile string  `json:"source_file"`
	ParamsJSON string  `json:"params_json"`
	PointCount int     `json:"point_count"`
	CrownCount int     `json:"crown_count"`
	NoiseCount int     `json:"noise_count"`
	DurationMs float64 `json:"duration_ms"`
	Notes      string  `json:"notes"`
}

// RecordRun stores a completed segmentation run with its crown summaries
// and labeled points in one transaction and returns the generated run ID.
func (cdb *CrownDB) RecordRun(sourceFile string, params ams3d.Params, labeled []ams3d.LabeledPoint,
	summaries []ams3d.CrownSummary, duration time.Duration, notes string) (string, error) {

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	noise := 0
	for _, lp := range labeled {
		if lp.CrownID == 0 {
			noise++
		}
	}

	runID := uuid.New().String()

	tx, err := cdb.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO segmentation_runs
			(run_id, source_file, params_json, point_count, crown_count, noise_count, duration_ms, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, sourceFile, string(paramsJSON), len(labeled), len(summaries), noise,
		float64(duration)/float64(time.Millisecond), notes)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	crownStmt, err := tx.Prepare(`
		INSERT INTO crowns
			(run_id, crown_id, points_count, centroid_x, centroid_y, centroid_z,
			 min_x, max_x, min_y, max_y, min_z, max_z, height_p95, mode_height_mean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer crownStmt.Close()

	for _, s := range summaries {
		_, err := crownStmt.Exec(runID, s.CrownID, s.PointsCount,
			s.CentroidX, s.CentroidY, s.CentroidZ,
			s.MinX, s.MaxX, s.MinY, s.MaxY, s.MinZ, s.MaxZ,
			s.HeightP95, s.ModeHeightMean)
		if err != nil {
			return "", fmt.Errorf("insert crown %d: %w", s.CrownID, err)
		}
	}

	pointStmt, err := tx.Prepare(`
		INSERT INTO labeled_points (run_id, x, y, z, mode_x, mode_y, mode_z, crown_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer pointStmt.Close()

	for _, lp := range labeled {
		if _, err := pointStmt.Exec(runID, lp.X, lp.Y, lp.Z, lp.ModeX, lp.ModeY, lp.ModeZ, lp.CrownID); err != nil {
			return "", fmt.Errorf("insert labeled point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun retrieves a run record by ID.
func (cdb *CrownDB) GetRun(runID string) (*Run, error) {
	row := cdb.QueryRow(`
		SELECT run_id, created_at, source_file, params_json,
		       point_count, crown_count, noise_count, duration_ms, notes
		FROM segmentation_runs WHERE run_id = ?
	`, runID)

	var r Run
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.SourceFile, &r.ParamsJSON,
		&r.PointCount, &r.CrownCount, &r.NoiseCount, &r.DurationMs, &r.Notes)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (cdb *CrownDB) ListRuns(limit int) ([]Run, error) {
	rows, err := cdb.Query(`
		SELECT run_id, created_at, source_file, params_json,
		       point_count, crown_count, noise_count, duration_ms, notes
		FROM segmentation_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.SourceFile, &r.ParamsJSON,
			&r.PointCount, &r.CrownCount, &r.NoiseCount, &r.DurationMs, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetCrowns returns the crown summaries of a run ordered by crown ID.
func (cdb *CrownDB) GetCrowns(runID string) ([]ams3d.CrownSummary, error) {
	rows, err := cdb.Query(`
		SELECT crown_id, points_count, centroid_x, centroid_y, centroid_z,
		       min_x, max_x, min_y, max_y, min_z, max_z, height_p95, mode_height_mean
		FROM crowns WHERE run_id = ? ORDER BY crown_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get crowns for %s: %w", runID, err)
	}
	defer rows.Close()

	var summaries []ams3d.CrownSummary
	for rows.Next() {
		var s ams3d.CrownSummary
		if err := rows.Scan(&s.CrownID, &s.PointsCount,
			&s.CentroidX, &s.CentroidY, &s.CentroidZ,
			&s.MinX, &s.MaxX, &s.MinY, &s.MaxY, &s.MinZ, &s.MaxZ,
			&s.HeightP95, &s.ModeHeightMean); err != nil {
			return nil, fmt.Errorf("scan crown row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetLabeledPoints returns a run's labeled cloud in insertion order.
func (cdb *CrownDB) GetLabeledPoints(runID string) ([]ams3d.LabeledPoint, error) {
	rows, err := cdb.Query(`
		SELECT x, y, z, mode_x, mode_y, mode_z, crown_id
		FROM labeled_points WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get labeled points for %s: %w", runID, err)
	}
	defer rows.Close()

	var points []ams3d.LabeledPoint
	for rows.Next() {
		var lp ams3d.LabeledPoint
		if err := rows.Scan(&lp.X, &lp.Y, &lp.Z, &lp.ModeX, &lp.ModeY, &lp.ModeZ, &lp.CrownID); err != nil {
			return nil, fmt.Errorf("scan labeled point row: %w", err)
		}
		points = append(points, lp)
	}
	return points, rows.Err()
}
