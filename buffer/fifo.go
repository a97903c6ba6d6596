package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// compactThreshold is how many popped slots may pile up at the front before they are reclaimed.
const compactThreshold = 256

var errQueueClosed = errors.New("queue is closed")

type entry[T any] struct {
	seq      uint64
	sample   T
	received time.Time
}

// fifo is a single-producer, single-consumer queue. A limit of 0 means unbounded.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []entry[T]
	head   int
	limit  int
	closed bool

	notEmpty chan struct{}
	notFull  chan struct{}
}

func newFIFO[T any](limit int) *fifo[T] {
	return &fifo[T]{
		limit:    limit,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (q *fifo[T]) lenLocked() int {
	return len(q.items) - q.head
}

// Len returns the number of queued entries.
func (q *fifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Push appends e, blocking while the queue is bounded and full.
func (q *fifo[T]) Push(ctx context.Context, e entry[T]) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return errQueueClosed
		}
		if q.limit == 0 || q.lenLocked() < q.limit {
			q.items = append(q.items, e)
			q.mu.Unlock()
			signal(q.notEmpty)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notFull:
		}
	}
}

// Pop removes the oldest entry, blocking while the queue is empty and open. ok is false once the
// queue is closed and drained.
func (q *fifo[T]) Pop(ctx context.Context) (e entry[T], ok bool, err error) {
	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			e = q.items[q.head]
			q.items[q.head] = entry[T]{}
			q.head++
			switch {
			case q.head == len(q.items):
				q.items = q.items[:0]
				q.head = 0
			case q.head >= compactThreshold && 2*q.head >= len(q.items):
				n := copy(q.items, q.items[q.head:])
				clear(q.items[n:])
				q.items = q.items[:n]
				q.head = 0
			}
			q.mu.Unlock()
			signal(q.notFull)
			return e, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return e, false, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return e, false, ctx.Err()
		case <-q.notEmpty:
		}
	}
}

// Close stops further pushes. Queued entries can still be popped.
func (q *fifo[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	signal(q.notEmpty)
	signal(q.notFull)
}
