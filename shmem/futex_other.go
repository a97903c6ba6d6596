//go:build !linux

package shmem

import (
	"sync/atomic"
	"time"
)

const futexPollInterval = time.Millisecond

// futexWait polls *addr until it differs from val or timeout elapses.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(addr) == val {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errWaitTimeout
		}
		time.Sleep(min(remaining, futexPollInterval))
	}
	return nil
}

func futexWake(*uint32) {}
