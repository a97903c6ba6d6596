// Package buffer forwards samples from one segment to another through an in-process FIFO, so a
// fast upstream writer and a slow downstream reader never block each other.
package buffer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/shmem"
	"go.viam.com/framepipe/utils"
)

// source is the upstream end of a Buffer.
type source[T any] interface {
	AttachWait(ctx context.Context) error
	Read(ctx context.Context) (T, shmem.ReadStatus, error)
	CancelSelf()
	Capacity() int
	Detach() error
}

// sink is the downstream end of a Buffer.
type sink[T any] interface {
	Bind(capacity int) error
	Publish(sample T) error
	SignalEnd() error
	Close() error
}

// Option configures a Buffer.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity bounds the queue to n samples. Intake waits for the drain when the queue is full.
// Zero, the default, leaves the queue unbounded.
func WithCapacity(n int) Option {
	return func(opts *options) {
		opts.capacity = max(n, 0)
	}
}

// Stats is a snapshot of a Buffer's counters.
type Stats struct {
	// In is the number of samples read from upstream.
	In uint64
	// Out is the number of samples published downstream.
	Out uint64
	// Depth is the number of samples waiting in the queue.
	Depth int
	// OldestWait is how long the sample at the head of the queue has been waiting.
	OldestWait time.Duration
}

// Buffer reads samples from an upstream segment and republishes them, in order, to a downstream
// segment it creates.
type Buffer[T any] struct {
	sourceName string
	sinkName   string
	logger     logging.Logger

	source source[T]
	sink   sink[T]
	queue  *fifo[T]

	in, out atomic.Uint64
	endOnce sync.Once
	endErr  error
}

// New returns a Buffer between the segments named source and sink.
func New[T any](
	sourceName, sinkName string,
	codec datatypes.Codec[T],
	logger logging.Logger,
	opts ...Option,
) *Buffer[T] {
	return newBuffer[T](
		sourceName, sinkName,
		shmem.NewClient[T](sourceName, codec, logger),
		shmem.NewServer[T](sinkName, codec, logger),
		logger, opts...,
	)
}

func newBuffer[T any](sourceName, sinkName string, src source[T], dst sink[T], logger logging.Logger, opts ...Option) *Buffer[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Buffer[T]{
		sourceName: sourceName,
		sinkName:   sinkName,
		logger:     logger,
		source:     src,
		sink:       dst,
		queue:      newFIFO[T](o.capacity),
	}
}

// NewFrameBuffer returns a Buffer of frames.
func NewFrameBuffer(sourceName, sinkName string, logger logging.Logger, opts ...Option) *Buffer[datatypes.Frame] {
	return New[datatypes.Frame](sourceName, sinkName, datatypes.FrameCodec{}, logger, opts...)
}

// NewPositionBuffer returns a Buffer of positions.
func NewPositionBuffer(sourceName, sinkName string, logger logging.Logger, opts ...Option) *Buffer[datatypes.Position2D] {
	return New[datatypes.Position2D](sourceName, sinkName, datatypes.PositionCodec{}, logger, opts...)
}

// Connect attaches to the source, waiting for it to appear, then creates the sink with the same
// slot capacity.
func (b *Buffer[T]) Connect(ctx context.Context) error {
	stop := utils.SlowLogger(ctx, "waiting for source segment", "source", b.sourceName, b.logger)
	err := b.source.AttachWait(ctx)
	stop()
	if err != nil {
		return errors.Wrapf(err, "attaching to source %q", b.sourceName)
	}
	b.logger.Infow("listening to source", "source", b.sourceName)
	if err := b.sink.Bind(b.source.Capacity()); err != nil {
		return err
	}
	b.logger.Infow("streaming to sink", "sink", b.sinkName)
	return nil
}

// Run forwards samples until the source ends and the queue is drained, or until ctx is done.
// Either way the sink is told the stream ended. Interruption is not an error.
func (b *Buffer[T]) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, b.source.CancelSelf)
	defer stop()

	var errMu sync.Mutex
	var runErr error
	fail := func(err error) {
		errMu.Lock()
		runErr = multierr.Combine(runErr, err)
		errMu.Unlock()
		cancel()
	}

	workers := utils.NewStoppableWorkersWithContext(runCtx,
		func(ctx context.Context) { b.intake(ctx, fail) },
		func(ctx context.Context) { b.drain(ctx, fail) },
	)
	workers.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return multierr.Combine(runErr, b.signalEnd())
}

func (b *Buffer[T]) intake(ctx context.Context, fail func(error)) {
	defer b.queue.Close()
	for {
		sample, status, err := b.source.Read(ctx)
		switch status {
		case shmem.ReadOK:
			seq := b.in.Add(1)
			if err := b.queue.Push(ctx, entry[T]{seq: seq, sample: sample, received: time.Now()}); err != nil {
				return
			}
		case shmem.ReadEndOfStream:
			b.logger.Debugw("source ended", "source", b.sourceName, "received", b.in.Load())
			return
		case shmem.ReadInterrupted, shmem.ReadTimedOut:
			b.logger.Debugw("intake interrupted", "source", b.sourceName, "status", status)
			return
		case shmem.ReadFailed:
			fail(errors.Wrapf(err, "reading source %q", b.sourceName))
			return
		}
	}
}

func (b *Buffer[T]) drain(ctx context.Context, fail func(error)) {
	for {
		e, ok, err := b.queue.Pop(ctx)
		if err != nil || !ok {
			return
		}
		if err := b.sink.Publish(e.sample); err != nil {
			fail(errors.Wrapf(err, "publishing sample %d to sink %q", e.seq, b.sinkName))
			return
		}
		b.out.Add(1)
	}
}

// signalEnd tells the sink the stream is over. Only the first call reaches the sink.
func (b *Buffer[T]) signalEnd() error {
	b.endOnce.Do(func() {
		b.endErr = b.sink.SignalEnd()
		b.logger.Infow("stream ended", "sink", b.sinkName, "forwarded", b.out.Load())
	})
	return b.endErr
}

// Stats returns the Buffer's counters.
func (b *Buffer[T]) Stats() Stats {
	stats := Stats{In: b.in.Load(), Out: b.out.Load()}
	b.queue.mu.Lock()
	stats.Depth = b.queue.lenLocked()
	if stats.Depth > 0 {
		stats.OldestWait = time.Since(b.queue.items[b.queue.head].received)
	}
	b.queue.mu.Unlock()
	return stats
}

// Close releases both segments. The sink is ended first if Run never did.
func (b *Buffer[T]) Close() error {
	return multierr.Combine(
		b.source.Detach(),
		b.signalEndIfBound(),
		b.sink.Close(),
	)
}

func (b *Buffer[T]) signalEndIfBound() error {
	err := b.signalEnd()
	if errors.Is(err, shmem.ErrNotBound) || errors.Is(err, shmem.ErrClosed) {
		return nil
	}
	return err
}
