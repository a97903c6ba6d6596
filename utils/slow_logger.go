package utils

import (
	"context"
	"time"

	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/logging"
)

// SlowLogger starts a goroutine that warns every few seconds until the returned function is called
// or ctx is done. Use it around waits that may never end, like waiting for a source segment.
func SlowLogger(ctx context.Context, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	slowTicker := time.NewTicker(2 * time.Second)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	goutils.PanicCapturingGo(func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Second).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(3 * time.Second)
					firstTick = false
				} else {
					slowTicker.Reset(5 * time.Second)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	})
	return func() { slowTicker.Stop(); cancel() }
}
