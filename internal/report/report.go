// Package report renders segmented point clouds as crown maps: a static
// PNG for print and an interactive HTML scatter for inspection.
package report

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/canopy.report/internal/ams3d"
)

// noiseGray marks unclustered returns on the PNG crown map.
var noiseGray = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// CrownMapPNG draws a top-down crown map of the labeled cloud and saves
// it to path. Each crown gets a distinct color; noise points are gray.
func CrownMapPNG(points []ams3d.LabeledPoint, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	byCrown := make(map[int]plotter.XYs)
	for _, lp := range points {
		byCrown[lp.CrownID] = append(byCrown[lp.CrownID], plotter.XY{X: lp.X, Y: lp.Y})
	}

	var crownIDs []int
	for id := range byCrown {
		if id != 0 {
			crownIDs = append(crownIDs, id)
		}
	}
	sort.Ints(crownIDs)

	colors := crownPalette(len(crownIDs))
	for i, id := range crownIDs {
		s, err := plotter.NewScatter(byCrown[id])
		if err != nil {
			return fmt.Errorf("crown %d: %w", id, err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
	}

	if noise, ok := byCrown[0]; ok {
		s, err := plotter.NewScatter(noise)
		if err != nil {
			return fmt.Errorf("noise: %w", err)
		}
		s.GlyphStyle.Color = noiseGray
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
	}

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("save crown map: %w", err)
	}
	return nil
}

// CrownMapHTML renders an interactive crown scatter to w using echarts.
// Points carry their crown ID in the third value dimension so the visual
// map colors whole crowns consistently.
func CrownMapHTML(points []ams3d.LabeledPoint, title string, w io.Writer) error {
	data := make([]opts.ScatterData, 0, len(points))
	maxID := 0
	for _, lp := range points {
		if lp.CrownID > maxID {
			maxID = lp.CrownID
		}
		data = append(data, opts.ScatterData{Value: []interface{}{lp.X, lp.Y, lp.CrownID}})
	}
	if maxID == 0 {
		maxID = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title, Theme: "dark", Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("points=%d crowns=%d", len(points), maxID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxID),
			Dimension:  "2",
			InRange: &opts.VisualMapInRange{Color: []string{
				"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
				"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
			}},
		}),
	)

	scatter.AddSeries("crowns", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter.Render(w)
}

// CrownMapHTMLFile renders the interactive crown scatter to the file at path.
func CrownMapHTMLFile(points []ams3d.LabeledPoint, title, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := CrownMapHTML(points, title, f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// HeightHistogramPNG plots the distribution of crown P95 heights.
func HeightHistogramPNG(summaries []ams3d.CrownSummary, title, path string) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no crowns to plot")
	}

	heights := make(plotter.Values, len(summaries))
	for i, s := range summaries {
		heights[i] = s.HeightP95
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Crown height P95 (m)"
	p.Y.Label.Text = "Crowns"

	bins := len(summaries) / 4
	if bins < 5 {
		bins = 5
	}
	h, err := plotter.NewHist(heights, bins)
	if err != nil {
		return fmt.Errorf("height histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save height histogram: %w", err)
	}
	return nil
}

// crownPalette creates a palette of distinct colors for crown scatters.
func crownPalette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
