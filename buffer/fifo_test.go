package buffer

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestFIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := newFIFO[int](0)

	// Interleave pushes and pops past the compaction threshold.
	next := 0
	for i := 0; i < 4*compactThreshold; i++ {
		test.That(t, q.Push(ctx, entry[int]{sample: i}), test.ShouldBeNil)
		test.That(t, q.Push(ctx, entry[int]{sample: -1}), test.ShouldBeNil)
		e, ok, err := q.Pop(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		if e.sample != -1 {
			test.That(t, e.sample, test.ShouldEqual, next)
			next++
		}
	}
	test.That(t, q.Len(), test.ShouldEqual, 4*compactThreshold)

	q.Close()
	test.That(t, q.Push(ctx, entry[int]{}), test.ShouldEqual, errQueueClosed)
	count := 0
	for {
		_, ok, err := q.Pop(ctx)
		test.That(t, err, test.ShouldBeNil)
		if !ok {
			break
		}
		count++
	}
	test.That(t, count, test.ShouldEqual, 4*compactThreshold)
	test.That(t, q.Len(), test.ShouldEqual, 0)
}

func TestFIFOBlocking(t *testing.T) {
	t.Run("pop waits for push", func(t *testing.T) {
		q := newFIFO[int](0)
		popped := make(chan int, 1)
		go func() {
			e, _, _ := q.Pop(context.Background())
			popped <- e.sample
		}()
		select {
		case <-popped:
			t.Fatal("pop returned from an empty queue")
		case <-time.After(50 * time.Millisecond):
		}
		test.That(t, q.Push(context.Background(), entry[int]{sample: 7}), test.ShouldBeNil)
		test.That(t, <-popped, test.ShouldEqual, 7)
	})

	t.Run("close wakes pop", func(t *testing.T) {
		q := newFIFO[int](0)
		done := make(chan bool, 1)
		go func() {
			_, ok, _ := q.Pop(context.Background())
			done <- ok
		}()
		time.Sleep(20 * time.Millisecond)
		q.Close()
		test.That(t, <-done, test.ShouldBeFalse)
	})

	t.Run("bounded push waits for pop", func(t *testing.T) {
		ctx := context.Background()
		q := newFIFO[int](1)
		test.That(t, q.Push(ctx, entry[int]{sample: 1}), test.ShouldBeNil)

		pushed := make(chan error, 1)
		go func() {
			pushed <- q.Push(ctx, entry[int]{sample: 2})
		}()
		select {
		case <-pushed:
			t.Fatal("push returned on a full queue")
		case <-time.After(50 * time.Millisecond):
		}
		e, ok, err := q.Pop(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, e.sample, test.ShouldEqual, 1)
		test.That(t, <-pushed, test.ShouldBeNil)
		test.That(t, q.Len(), test.ShouldEqual, 1)
	})

	t.Run("context ends waits", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		q := newFIFO[int](1)
		_, ok, err := q.Pop(ctx)
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, err, test.ShouldBeError, context.DeadlineExceeded)

		test.That(t, q.Push(context.Background(), entry[int]{}), test.ShouldBeNil)
		test.That(t, q.Push(ctx, entry[int]{}), test.ShouldBeError, context.DeadlineExceeded)
	})
}
