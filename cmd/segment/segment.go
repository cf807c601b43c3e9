// Command segment delineates individual tree crowns in an airborne LiDAR
// point cloud and writes the labeled cloud, per-crown statistics and
// optional visualizations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/canopy.report/internal/ams3d"
	"github.com/banshee-data/canopy.report/internal/cloudio"
	"github.com/banshee-data/canopy.report/internal/config"
	"github.com/banshee-data/canopy.report/internal/crowndb"
	"github.com/banshee-data/canopy.report/internal/report"
	"github.com/banshee-data/canopy.report/internal/version"
)

var (
	input      = flag.String("input", "", "Input point cloud (x y z per line; whitespace or comma separated)")
	configFile = flag.String("config", "", "JSON tuning config; explicit flags override file values")
	output     = flag.String("output", "", "Output CSV for the labeled cloud (default: <input>.crowns.csv)")
	summary    = flag.String("summary", "", "Output CSV for per-crown statistics (disabled if empty)")
	dbFile     = flag.String("db", "", "SQLite database to record the run in (disabled if empty)")
	notes      = flag.String("notes", "", "Free-form notes stored with the database record")

	plotPNG  = flag.String("plot", "", "Write a top-down crown map PNG to this path")
	plotHTML = flag.String("html", "", "Write an interactive crown map HTML to this path")
	histPNG  = flag.String("hist", "", "Write a crown height histogram PNG to this path")

	kernelName    = flag.String("kernel", "classic", "Kernel variant: classic or improved")
	uniformKernel = flag.Bool("uniform", false, "Use unit weights inside the kernel cylinder (classic only)")
	diameterRatio = flag.Float64("crown-diameter-ratio", ams3d.DefaultCrownDiameterToHeight, "Crown diameter to tree height ratio")
	heightRatio   = flag.Float64("crown-height-ratio", ams3d.DefaultCrownHeightToHeight, "Crown height to tree height ratio")
	minHeight     = flag.Float64("min-height", ams3d.DefaultMinHeight, "Drop returns below this height (metres)")
	maxIterations = flag.Int("max-iterations", ams3d.DefaultMaxIterations, "Kernel iteration cap per point")
	epsilon       = flag.Float64("epsilon", ams3d.DefaultConvergenceEpsilon, "Convergence step threshold (metres)")

	coreWidth   = flag.Float64("core-width", ams3d.DefaultCoreWidth, "Tile core edge length (metres)")
	bufferWidth = flag.Float64("buffer-width", ams3d.DefaultBufferWidth, "Tile buffer halo width (metres)")
	clusterEps  = flag.Float64("cluster-eps", ams3d.DefaultClusterEps, "Mode clustering neighborhood radius (metres)")
	clusterMin  = flag.Int("cluster-min-pts", ams3d.DefaultClusterMinPts, "Minimum modes to seed a crown")
	stitchName  = flag.String("stitch", "cluster-center", "Tile stitch strategy: cluster-center or rounded-mode")
	workerFrac  = flag.Float64("workers", ams3d.DefaultWorkerFraction, "Fraction of CPUs for the tile worker pool")

	verbose     = flag.Bool("verbose", false, "Enable diagnostic logging")
	trace       = flag.Bool("trace", false, "Enable per-tile trace logging (implies -verbose)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if *showVersion {
		fmt.Printf("segment %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if err := run(); err != nil {
		log.Fatalf("segment: %v", err)
	}
}

func run() error {
	if *input == "" {
		flag.Usage()
		return fmt.Errorf("missing required -input")
	}

	writers := ams3d.LogWriters{Ops: os.Stderr}
	if *verbose || *trace {
		writers.Diag = os.Stderr
	}
	if *trace {
		writers.Trace = os.Stderr
	}
	ams3d.SetLogWriters(writers)

	params, err := buildParams()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	points, err := cloudio.ReadXYZFile(*input)
	if err != nil {
		return err
	}
	log.Printf("read %d returns from %s", len(points), *input)

	lastPct := -1
	params.Progress = func(done, total int) {
		pct := done * 100 / total
		if pct/10 > lastPct/10 {
			lastPct = pct
			log.Printf("segmentation %d%% (%d/%d tiles)", pct, done, total)
		}
	}

	start := time.Now()
	labeled, err := ams3d.SegmentTreeCrowns(ctx, points, params)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	summaries := ams3d.CrownSummaries(labeled)
	noise := 0
	for _, lp := range labeled {
		if lp.CrownID == 0 {
			noise++
		}
	}
	log.Printf("segmented %d returns into %d crowns (%d noise) in %s",
		len(labeled), len(summaries), noise, elapsed.Round(time.Millisecond))

	outPath := *output
	if outPath == "" {
		outPath = *input + ".crowns.csv"
	}
	if err := cloudio.WriteLabeledFile(outPath, labeled); err != nil {
		return err
	}
	log.Printf("wrote labeled cloud to %s", outPath)

	if *summary != "" {
		if err := cloudio.WriteSummariesFile(*summary, summaries); err != nil {
			return err
		}
		log.Printf("wrote %d crown summaries to %s", len(summaries), *summary)
	}

	if *dbFile != "" {
		db, err := crowndb.Open(*dbFile)
		if err != nil {
			return fmt.Errorf("open crown database: %w", err)
		}
		defer db.Close()
		runID, err := db.RecordRun(*input, params, labeled, summaries, elapsed, *notes)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		log.Printf("recorded run %s in %s", runID, *dbFile)
	}

	title := fmt.Sprintf("Tree crowns: %s", *input)
	if *plotPNG != "" {
		if err := report.CrownMapPNG(labeled, title, *plotPNG); err != nil {
			return err
		}
		log.Printf("wrote crown map to %s", *plotPNG)
	}
	if *plotHTML != "" {
		if err := report.CrownMapHTMLFile(labeled, title, *plotHTML); err != nil {
			return err
		}
		log.Printf("wrote interactive crown map to %s", *plotHTML)
	}
	if *histPNG != "" {
		if err := report.HeightHistogramPNG(summaries, title, *histPNG); err != nil {
			return err
		}
		log.Printf("wrote height histogram to %s", *histPNG)
	}

	return nil
}

// buildParams layers the parameter sources: defaults, then the tuning
// config file, then any flags given explicitly on the command line.
func buildParams() (ams3d.Params, error) {
	p := ams3d.DefaultParams()

	if *configFile != "" {
		cfg, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			return p, err
		}
		if err := cfg.Apply(&p); err != nil {
			return p, fmt.Errorf("%s: %w", *configFile, err)
		}
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		if flagErr != nil {
			return
		}
		switch f.Name {
		case "kernel":
			p.Kernel, flagErr = ams3d.ParseKernelVariant(*kernelName)
		case "uniform":
			p.UniformKernel = *uniformKernel
		case "crown-diameter-ratio":
			p.CrownDiameterToHeight = *diameterRatio
		case "crown-height-ratio":
			p.CrownHeightToHeight = *heightRatio
		case "min-height":
			p.MinHeight = *minHeight
		case "max-iterations":
			p.MaxIterations = *maxIterations
		case "epsilon":
			p.ConvergenceEpsilon = *epsilon
		case "core-width":
			p.CoreWidth = *coreWidth
		case "buffer-width":
			p.BufferWidth = *bufferWidth
		case "cluster-eps":
			p.ClusterEps = *clusterEps
		case "cluster-min-pts":
			p.ClusterMinPts = *clusterMin
		case "stitch":
			p.Stitch, flagErr = ams3d.ParseStitchStrategy(*stitchName)
		case "workers":
			p.WorkerFraction = *workerFrac
		}
	})
	if flagErr != nil {
		return p, flagErr
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
