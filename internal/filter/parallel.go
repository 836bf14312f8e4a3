package filter

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minRowsPerBand keeps small images on one goroutine.
const minRowsPerBand = 16

// forEachRowBand splits [0, height) into contiguous bands and runs fn on each
// band concurrently. Bands never overlap, so fn may write its rows of a
// shared destination without locking.
func forEachRowBand(height int, fn func(y0, y1 int)) {
	workers := runtime.GOMAXPROCS(0)
	bands := height / minRowsPerBand
	if bands > workers {
		bands = workers
	}
	if bands <= 1 {
		fn(0, height)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	rows := (height + bands - 1) / bands
	for y0 := 0; y0 < height; y0 += rows {
		y1 := min(y0+rows, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}
