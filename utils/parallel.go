package utils

import (
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	quarterProcs := float64(ParallelFactor) * .25
	if quarterProcs > 8 {
		ParallelFactor = int(quarterProcs)
	}
}

// ParallelForEachRow calls f once for every row in [0, height). The rows are split into at most
// ParallelFactor contiguous bands, each handled by its own goroutine. f must only touch its row.
func ParallelForEachRow(height int, f func(y int)) {
	bands := min(ParallelFactor, height)
	if bands <= 1 {
		for y := 0; y < height; y++ {
			f(y)
		}
		return
	}

	per, extra := height/bands, height%bands
	var wait sync.WaitGroup
	wait.Add(bands)
	from := 0
	for band := 0; band < bands; band++ {
		to := from + per
		if band < extra {
			to++
		}
		lo, hi := from, to
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			for y := lo; y < hi; y++ {
				f(y)
			}
		})
		from = to
	}
	wait.Wait()
}
