package ams3d

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// TileResult holds the labeled points a single tile contributes to the
// final cloud after core-area retention. Crown IDs are tile-local
// (1-based, 0 = noise) until the assembler renumbers them.
type TileResult struct {
	Row, Col int
	Points   []LabeledPoint
	MaxID    int
}

// SegmentTreeCrowns runs the full segmentation pipeline: buffered tiling,
// parallel per-tile mean shift and mode labeling, core-area retention and
// cross-tile assembly into a globally consistent labeling. Crown IDs in
// the result are dense and 1-based; ID 0 marks noise. For equal inputs
// the output is identical regardless of worker scheduling.
func SegmentTreeCrowns(ctx context.Context, points []Point, p Params) ([]LabeledPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	tiles := SplitCloudBuffered(points, p.CoreWidth, p.BufferWidth)
	results, err := runTiles(ctx, tiles, p)
	if err != nil {
		return nil, err
	}

	labeled := AssembleTileResults(results)
	CompactCrownIDs(labeled)
	return labeled, nil
}

// runTiles dispatches one task per tile to a fixed worker pool and
// collects results in tile order. On the first task failure no further
// tasks are dispatched; in-flight tasks drain before the error is
// returned. The pool is joined on every exit path.
func runTiles(ctx context.Context, tiles []Tile, p Params) ([]TileResult, error) {
	total := len(tiles)
	results := make([]TileResult, total)

	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		errOnce  sync.Once
		firstErr error
	)

	jobs := make(chan int)
	stopDispatch := make(chan struct{})
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			close(stopDispatch)
		})
	}

	workers := p.Workers()
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ti := range jobs {
				res, err := runTileTask(ctx, tiles[ti], p)
				if err != nil {
					fail(err)
					continue
				}
				results[ti] = res
				n := done.Add(1)
				if p.Progress != nil {
					p.Progress(int(n), total)
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		select {
		case jobs <- i:
		case <-stopDispatch:
			i = total
		case <-ctx.Done():
			i = total
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// runTileTask wraps processTile with panic recovery so that an invariant
// violation inside a worker surfaces as the run's fatal error instead of
// crashing the process.
func runTileTask(ctx context.Context, t Tile, p Params) (res TileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tile (%d,%d): worker panic: %v", t.Row, t.Col, r)
		}
	}()
	return processTile(ctx, t, p)
}

// processTile runs the per-tile pipeline: height filter, shift to a
// tile-local origin for numerical stability, mean shift, mode labeling,
// un-shift, and core-area retention.
func processTile(ctx context.Context, t Tile, p Params) (TileResult, error) {
	res := TileResult{Row: t.Row, Col: t.Col}

	kept := make([]Point, 0, len(t.Points))
	for _, pt := range t.Points {
		if pt.Z >= p.MinHeight {
			kept = append(kept, pt)
		}
	}
	if len(kept) == 0 {
		Diagf("tile (%d,%d): no points above min height %.2f", t.Row, t.Col, p.MinHeight)
		return res, nil
	}

	// Shift XY so the buffered min corner sits at the origin. Large UTM
	// coordinates otherwise eat the mantissa bits the kernel sums need.
	offX := t.CoreMinX - t.BufferWidth
	offY := t.CoreMinY - t.BufferWidth
	shifted := make([]Point, len(kept))
	for i, pt := range kept {
		shifted[i] = Point{X: pt.X - offX, Y: pt.Y - offY, Z: pt.Z}
	}

	modes, err := MeanShift(ctx, shifted, p)
	if err != nil {
		return res, err
	}

	labels := LabelModes(modes, p.ClusterEps, p.ClusterMinPts)

	labeled := make([]LabeledPoint, len(modes))
	for i, m := range modes {
		labeled[i] = LabeledPoint{
			X: kept[i].X, Y: kept[i].Y, Z: kept[i].Z,
			ModeX: m.ModeX + offX, ModeY: m.ModeY + offY, ModeZ: m.ModeZ,
			CrownID: labels[i],
		}
	}

	res.Points, res.MaxID = retainCore(&t, labeled, p.Stitch)
	Tracef("tile (%d,%d): %d in, %d retained, max local crown %d",
		t.Row, t.Col, len(labeled), len(res.Points), res.MaxID)
	return res, nil
}

// retainCore filters a tile's labeled points down to the ones this tile
// owns, preventing crowns cut by tile boundaries from being emitted twice.
func retainCore(t *Tile, labeled []LabeledPoint, strategy StitchStrategy) ([]LabeledPoint, int) {
	var out []LabeledPoint
	maxID := 0

	switch strategy {
	case StitchRoundedMode:
		for _, lp := range labeled {
			if t.CoreContains(math.Round(lp.ModeX), math.Round(lp.ModeY)) {
				out = append(out, lp)
				if lp.CrownID > maxID {
					maxID = lp.CrownID
				}
			}
		}

	default: // StitchClusterCenter
		type acc struct {
			sx, sy float64
			n      int
		}
		centers := make(map[int]*acc)
		for _, lp := range labeled {
			if lp.CrownID == 0 {
				continue
			}
			a := centers[lp.CrownID]
			if a == nil {
				a = &acc{}
				centers[lp.CrownID] = a
			}
			a.sx += lp.ModeX
			a.sy += lp.ModeY
			a.n++
		}

		for _, lp := range labeled {
			keep := false
			if lp.CrownID == 0 {
				// Noise is owned by whichever tile's core holds its mode;
				// modes partition space so each copy is retained once.
				keep = t.CoreContains(lp.ModeX, lp.ModeY)
			} else {
				a := centers[lp.CrownID]
				keep = t.CoreContains(a.sx/float64(a.n), a.sy/float64(a.n))
			}
			if keep {
				out = append(out, lp)
				if lp.CrownID > maxID {
					maxID = lp.CrownID
				}
			}
		}
	}
	return out, maxID
}
