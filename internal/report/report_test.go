package report

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/canopy.report/internal/ams3d"
)

func sampleCloud() []ams3d.LabeledPoint {
	return []ams3d.LabeledPoint{
		{X: 0, Y: 0, Z: 10, CrownID: 1},
		{X: 0.5, Y: 0.5, Z: 11, CrownID: 1},
		{X: 10, Y: 10, Z: 14, CrownID: 2},
		{X: 10.5, Y: 10, Z: 13, CrownID: 2},
		{X: 50, Y: 50, Z: 3, CrownID: 0},
	}
}

func TestCrownMapPNG_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowns.png")
	if err := CrownMapPNG(sampleCloud(), "test plot", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("crown map PNG is empty")
	}
}

func TestCrownMapPNG_NoiseOnly(t *testing.T) {
	points := []ams3d.LabeledPoint{{X: 1, Y: 1, Z: 3, CrownID: 0}}
	path := filepath.Join(t.TempDir(), "noise.png")
	if err := CrownMapPNG(points, "noise", path); err != nil {
		t.Fatalf("noise-only cloud must still plot: %v", err)
	}
}

func TestCrownMapHTML_RendersChart(t *testing.T) {
	var buf bytes.Buffer
	if err := CrownMapHTML(sampleCloud(), "survey 7", &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "survey 7") {
		t.Error("rendered HTML does not carry the title")
	}
	if !strings.Contains(html, "echarts") {
		t.Error("rendered HTML does not reference echarts")
	}
}

func TestCrownMapHTMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowns.html")
	if err := CrownMapHTMLFile(sampleCloud(), "survey", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("output HTML missing or empty: %v", err)
	}
}

func TestHeightHistogramPNG(t *testing.T) {
	summaries := []ams3d.CrownSummary{
		{CrownID: 1, HeightP95: 12}, {CrownID: 2, HeightP95: 15},
		{CrownID: 3, HeightP95: 9}, {CrownID: 4, HeightP95: 21},
	}
	path := filepath.Join(t.TempDir(), "heights.png")
	if err := HeightHistogramPNG(summaries, "heights", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("histogram PNG missing or empty: %v", err)
	}
}

func TestHeightHistogramPNG_Empty(t *testing.T) {
	if err := HeightHistogramPNG(nil, "empty", filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("expected error for empty summary list")
	}
}

func TestCrownPalette_DistinctColors(t *testing.T) {
	colors := crownPalette(12)
	if len(colors) != 12 {
		t.Fatalf("palette size = %d, want 12", len(colors))
	}
	seen := make(map[color.Color]bool)
	for _, c := range colors {
		if seen[c] {
			t.Errorf("palette repeats color %v", c)
		}
		seen[c] = true
	}
	if crownPalette(0) != nil {
		t.Error("empty palette should be nil")
	}
}
