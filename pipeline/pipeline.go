// Package pipeline holds the run loops shared by every framepipe process: read from an upstream
// segment, do some work, publish to a downstream segment, and make sure the downstream segment is
// always ended, however the loop stops.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/shmem"
)

// Reader is the upstream end of a stage, usually a *shmem.Client.
type Reader[T any] interface {
	Read(ctx context.Context) (T, shmem.ReadStatus, error)
	CancelSelf()
}

// Writer is the downstream end of a stage, usually a *shmem.Server.
type Writer[T any] interface {
	Publish(sample T) error
	SignalEnd() error
}

// TransformFunc turns one upstream sample into one downstream sample.
type TransformFunc[In, Out any] func(ctx context.Context, sample In) (Out, error)

// SinkFunc consumes one upstream sample.
type SinkFunc[In any] func(ctx context.Context, sample In) error

// SourceFunc produces the next sample. ok is false once there is nothing more to produce.
type SourceFunc[Out any] func(ctx context.Context) (sample Out, ok bool, err error)

// RunTransform reads, transforms and publishes until the upstream ends or ctx is done. The
// downstream is ended in every case. A transform or publish error stops the loop and is returned.
func RunTransform[In, Out any](
	ctx context.Context,
	src Reader[In],
	dst Writer[Out],
	fn TransformFunc[In, Out],
	logger logging.Logger,
) error {
	var count uint64
	err := readLoop(ctx, src, logger, func(sample In) error {
		out, err := fn(ctx, sample)
		if err != nil {
			return errors.Wrapf(err, "processing sample %d", count)
		}
		if err := dst.Publish(out); err != nil {
			return errors.Wrapf(err, "publishing sample %d", count)
		}
		count++
		return nil
	})
	logger.Debugw("transform finished", "samples", count)
	return multierr.Combine(err, dst.SignalEnd())
}

// RunSink reads and consumes samples until the upstream ends or ctx is done. Reaching the end of
// the stream is not an error.
func RunSink[In any](ctx context.Context, src Reader[In], fn SinkFunc[In], logger logging.Logger) error {
	var count uint64
	err := readLoop(ctx, src, logger, func(sample In) error {
		if err := fn(ctx, sample); err != nil {
			return errors.Wrapf(err, "consuming sample %d", count)
		}
		count++
		return nil
	})
	logger.Debugw("sink finished", "samples", count)
	return err
}

// RunSource publishes samples from next until it runs dry or ctx is done, then ends the stream.
func RunSource[Out any](ctx context.Context, dst Writer[Out], next SourceFunc[Out], logger logging.Logger) error {
	var count uint64
	for ctx.Err() == nil {
		sample, ok, err := next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return multierr.Combine(errors.Wrapf(err, "producing sample %d", count), dst.SignalEnd())
		}
		if !ok {
			logger.Info("source exhausted")
			break
		}
		if err := dst.Publish(sample); err != nil {
			return multierr.Combine(errors.Wrapf(err, "publishing sample %d", count), dst.SignalEnd())
		}
		count++
	}
	logger.Debugw("source finished", "samples", count)
	return dst.SignalEnd()
}

func readLoop[In any](ctx context.Context, src Reader[In], logger logging.Logger, handle func(In) error) error {
	stop := context.AfterFunc(ctx, src.CancelSelf)
	defer stop()

	for {
		sample, status, err := src.Read(ctx)
		switch status {
		case shmem.ReadOK:
			if err := handle(sample); err != nil {
				return err
			}
		case shmem.ReadEndOfStream:
			logger.Info("source ended")
			return nil
		case shmem.ReadInterrupted, shmem.ReadTimedOut:
			logger.Infow("exiting", "reason", status)
			return nil
		case shmem.ReadFailed:
			return err
		}
	}
}
