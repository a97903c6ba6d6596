package shmem

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// waitSlice bounds a single futex wait so cancellation is seen even if a wake is lost.
const waitSlice = 50 * time.Millisecond

var errWaitTimeout = errors.New("wait timed out")

// turnstile is the wake word of a segment header. The writer advances it after every publish and
// at end of stream; readers observe it, re-check the header, then wait for it to move.
type turnstile struct {
	word *uint32
}

func newTurnstile(hdr *header) turnstile {
	return turnstile{word: &hdr.wake}
}

// Observe returns the current turn. It must be read before the condition it guards.
func (t turnstile) Observe() uint32 {
	return atomic.LoadUint32(t.word)
}

// Wait blocks until the turn moves past observed or timeout elapses, whichever is first. The
// timeout is capped to waitSlice. Returns errWaitTimeout when nothing moved.
func (t turnstile) Wait(observed uint32, timeout time.Duration) error {
	if timeout <= 0 || timeout > waitSlice {
		timeout = waitSlice
	}
	return futexWait(t.word, observed, timeout)
}

// Advance moves the turn forward and wakes every waiter. Only the writer advances.
func (t turnstile) Advance() {
	atomic.AddUint32(t.word, 1)
	futexWake(t.word)
}

// Nudge wakes every waiter without moving the turn. Waiters recheck and go back to sleep unless
// something they watch for changed.
func (t turnstile) Nudge() {
	futexWake(t.word)
}
