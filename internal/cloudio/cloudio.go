// Package cloudio reads and writes the plain-text point cloud formats the
// segmentation pipeline consumes and produces. Input is one return per
// line (x y z, whitespace or comma separated); output is CSV.
package cloudio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/canopy.report/internal/ams3d"
)

// ReadXYZ parses a point cloud from r. Blank lines and lines starting
// with '#' are skipped. Fields may be separated by whitespace or commas;
// extra trailing fields (intensity, return number) are ignored.
func ReadXYZ(r io.Reader) ([]ams3d.Point, error) {
	var points []ams3d.Point

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}

		var coords [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: field %d: %w", lineNo, i+1, err)
			}
			coords[i] = v
		}
		points = append(points, ams3d.Point{X: coords[0], Y: coords[1], Z: coords[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read point cloud: %w", err)
	}
	return points, nil
}

// ReadXYZFile reads a point cloud from the file at path.
func ReadXYZFile(path string) ([]ams3d.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	points, err := ReadXYZ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

var labeledHeader = []string{"x", "y", "z", "mode_x", "mode_y", "mode_z", "crown_id"}

// WriteLabeled writes a segmented cloud as CSV with a header row. Crown
// ID 0 marks noise.
func WriteLabeled(w io.Writer, points []ams3d.LabeledPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(labeledHeader); err != nil {
		return err
	}
	for _, lp := range points {
		rec := []string{
			formatCoord(lp.X), formatCoord(lp.Y), formatCoord(lp.Z),
			formatCoord(lp.ModeX), formatCoord(lp.ModeY), formatCoord(lp.ModeZ),
			strconv.Itoa(lp.CrownID),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLabeledFile writes a segmented cloud to the file at path.
func WriteLabeledFile(path string, points []ams3d.LabeledPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLabeled(f, points); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

var summaryHeader = []string{
	"crown_id", "points", "centroid_x", "centroid_y", "centroid_z",
	"min_x", "max_x", "min_y", "max_y", "min_z", "max_z",
	"height_p95", "mode_height_mean",
}

// WriteSummaries writes per-crown statistics as CSV with a header row.
func WriteSummaries(w io.Writer, summaries []ams3d.CrownSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{
			strconv.Itoa(s.CrownID),
			strconv.Itoa(s.PointsCount),
			formatCoord(s.CentroidX), formatCoord(s.CentroidY), formatCoord(s.CentroidZ),
			formatCoord(s.MinX), formatCoord(s.MaxX),
			formatCoord(s.MinY), formatCoord(s.MaxY),
			formatCoord(s.MinZ), formatCoord(s.MaxZ),
			formatCoord(s.HeightP95), formatCoord(s.ModeHeightMean),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummariesFile writes per-crown statistics to the file at path.
func WriteSummariesFile(path string, summaries []ams3d.CrownSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSummaries(f, summaries); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
