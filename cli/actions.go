package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/buffer"
	"go.viam.com/framepipe/config"
	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/framefilter"
	"go.viam.com/framepipe/frameviewer"
	"go.viam.com/framepipe/framesource"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/pipeline"
	"go.viam.com/framepipe/poslogger"
	"go.viam.com/framepipe/positiondetector"
	"go.viam.com/framepipe/shmem"
)

// BufferAction runs a buffer between two segments.
func BufferAction(c *cli.Context) error {
	args, err := positionalArgs(c, 3, false)
	if err != nil {
		return err
	}
	tag, err := datatypes.ParseLayoutTag(args[0])
	if err != nil {
		return err
	}
	sourceName, sinkName := args[1], args[2]
	logger, closeLog := newLogger(c, fmt.Sprintf("buffer[%s->%s]", sourceName, sinkName))
	defer closeLog()
	capacity := c.Int(bufferFlagCapacity)
	if capacity < 0 {
		return errors.Errorf("--%s cannot be negative", bufferFlagCapacity)
	}
	opts := []buffer.Option{buffer.WithCapacity(capacity)}

	switch tag {
	case datatypes.LayoutFrame:
		return runBuffer(c.Context, buffer.NewFrameBuffer(sourceName, sinkName, logger, opts...), logger)
	case datatypes.LayoutPosition2D:
		return runBuffer(c.Context, buffer.NewPositionBuffer(sourceName, sinkName, logger, opts...), logger)
	case datatypes.LayoutUnknown:
	}
	return errors.Errorf("cannot buffer %v samples", tag)
}

func runBuffer[T any](ctx context.Context, b *buffer.Buffer[T], logger logging.Logger) (err error) {
	defer func() {
		err = multierr.Combine(err, b.Close())
	}()
	connectCtx, cancel := attachContext(ctx, logger)
	defer cancel()
	if err := b.Connect(connectCtx); err != nil {
		return interruptedIsClean(ctx, err)
	}
	return b.Run(ctx)
}

// FrameFilterAction runs a frame filter between two segments.
func FrameFilterAction(c *cli.Context) error {
	args, err := positionalArgs(c, 3, false)
	if err != nil {
		return err
	}
	kind, sourceName, sinkName := framefilter.Kind(args[0]), args[1], args[2]
	logger, closeLog := newLogger(c, fmt.Sprintf("framefilt[%s->%s]", sourceName, sinkName))
	defer closeLog()

	var cfg framefilter.Config
	if err := readComponentConfig(c, &cfg, logger); err != nil {
		return err
	}
	if c.IsSet(filterFlagBackground) {
		cfg.Background = c.Path(filterFlagBackground)
	}
	if c.IsSet(filterFlagMask) {
		cfg.Mask = c.Path(filterFlagMask)
	}
	filter, err := framefilter.Build(kind, cfg, logger)
	if err != nil {
		return err
	}

	return runTransformProcess(c.Context,
		shmem.NewClient[datatypes.Frame](sourceName, datatypes.FrameCodec{}, logger),
		shmem.NewServer[datatypes.Frame](sinkName, datatypes.FrameCodec{}, logger),
		func(sourceCapacity int) int { return sourceCapacity },
		func(ctx context.Context, frame datatypes.Frame) (datatypes.Frame, error) {
			if err := filter.Apply(&frame); err != nil {
				return datatypes.Frame{}, err
			}
			return frame, nil
		},
		logger,
	)
}

// PositionDetectAction runs a position detector from a frame segment to a position segment.
func PositionDetectAction(c *cli.Context) error {
	args, err := positionalArgs(c, 3, false)
	if err != nil {
		return err
	}
	kind, sourceName, sinkName := positiondetector.Kind(args[0]), args[1], args[2]
	logger, closeLog := newLogger(c, fmt.Sprintf("posidet[%s->%s]", sourceName, sinkName))
	defer closeLog()

	var cfg positiondetector.MultiLEDConfig
	if err := readComponentConfig(c, &cfg, logger); err != nil {
		return err
	}
	if err := detectorFlagOverrides(c, &cfg); err != nil {
		return err
	}
	detector, err := positiondetector.Build(kind, cfg, logger)
	if err != nil {
		return err
	}

	return runTransformProcess(c.Context,
		shmem.NewClient[datatypes.Frame](sourceName, datatypes.FrameCodec{}, logger),
		shmem.NewServer[datatypes.Position2D](sinkName, datatypes.PositionCodec{}, logger),
		func(int) int { return datatypes.Position2DSize },
		func(ctx context.Context, frame datatypes.Frame) (datatypes.Position2D, error) {
			return detector.Detect(&frame)
		},
		logger,
	)
}

func detectorFlagOverrides(c *cli.Context, cfg *positiondetector.MultiLEDConfig) error {
	if c.IsSet(detectorFlagThresh) {
		thresh, err := config.ParseIntPair(c.String(detectorFlagThresh))
		if err != nil {
			return errors.Wrapf(err, "--%s", detectorFlagThresh)
		}
		cfg.Thresh = thresh[:]
	}
	if c.IsSet(detectorFlagArea) {
		area, err := config.ParseFloatPair(c.String(detectorFlagArea))
		if err != nil {
			return errors.Wrapf(err, "--%s", detectorFlagArea)
		}
		cfg.Area = area[:]
	}
	if c.IsSet(detectorFlagErode) {
		cfg.Erode = c.Int(detectorFlagErode)
	}
	if c.IsSet(detectorFlagDilate) {
		cfg.Dilate = c.Int(detectorFlagDilate)
	}
	if c.IsSet(detectorFlagMinComp) {
		cfg.MinComp = c.Int(detectorFlagMinComp)
	}
	return nil
}

// ViewAction views a frame segment.
func ViewAction(c *cli.Context) error {
	args, err := positionalArgs(c, 1, false)
	if err != nil {
		return err
	}
	sourceName := args[0]
	logger, closeLog := newLogger(c, fmt.Sprintf("viewer[%s]", sourceName))
	defer closeLog()

	var cfg frameviewer.Config
	if err := readComponentConfig(c, &cfg, logger); err != nil {
		return err
	}
	if c.IsSet(viewFlagSnapshotPath) {
		cfg.SnapshotPath = c.Path(viewFlagSnapshotPath)
	}
	if c.IsSet(viewFlagFileName) {
		cfg.FileName = c.String(viewFlagFileName)
	}
	if c.IsSet(viewFlagFormat) {
		cfg.Format = c.String(viewFlagFormat)
	}
	if err := cfg.Validate(c.Command.Name); err != nil {
		return err
	}

	var display frameviewer.Display = frameviewer.NewLogDisplay(logger)
	if path := c.Path(viewFlagDisplay); path != "" {
		fileDisplay, err := frameviewer.NewFileDisplay(path)
		if err != nil {
			return err
		}
		display = fileDisplay
	}

	source := shmem.NewClient[datatypes.Frame](sourceName, datatypes.FrameCodec{}, logger)
	var (
		viewer      *frameviewer.Viewer
		stopSignals func()
	)
	attached := func() {
		viewer, err = frameviewer.New(frameviewer.Name(sourceName, source.ReaderNumber()),
			sourceName, cfg, display, nil, logger)
		if err != nil {
			source.CancelSelf()
			return
		}
		stopSignals = handleSnapshotSignals(c.Context, viewer, logger)
	}
	consume := func(ctx context.Context, frame datatypes.Frame) error {
		return viewer.Consume(ctx, frame)
	}
	runErr := runSinkProcess(c.Context, source, consume, attached, logger)
	if stopSignals != nil {
		stopSignals()
	}
	return multierr.Combine(err, runErr)
}

// handleSnapshotSignals saves a snapshot every time the process gets a snapshot signal, until the
// returned function is called or ctx is done.
func handleSnapshotSignals(ctx context.Context, viewer *frameviewer.Viewer, logger logging.Logger) func() {
	sigs := make(chan os.Signal, 1)
	notifySnapshot(sigs)
	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-sigs:
				if _, err := viewer.Snapshot(ctx); err != nil {
					logger.Warnw("snapshot failed", "error", err)
				}
			}
		}
	})
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// FrameServeAction publishes image files to a frame segment.
func FrameServeAction(c *cli.Context) (err error) {
	args, err := positionalArgs(c, 2, true)
	if err != nil {
		return err
	}
	sinkName := args[0]
	logger, closeLog := newLogger(c, fmt.Sprintf("frameserve[%s]", sinkName))
	defer closeLog()

	src, err := framesource.New(framesource.Config{
		Files: args[1:],
		FPS:   c.Float64(serveFlagFPS),
		Loop:  c.Bool(serveFlagLoop),
	}, nil, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	sink := shmem.NewServer[datatypes.Frame](sinkName, datatypes.FrameCodec{}, logger)
	defer func() {
		err = multierr.Combine(err, sink.Close())
	}()
	if err := sink.Bind(src.Capacity()); err != nil {
		return err
	}
	logger.Infow("streaming to sink", "sink", sinkName)
	return pipeline.RunSource(c.Context, sink, src.Next, logger)
}

// PositionLogAction writes a position segment as JSON lines.
func PositionLogAction(c *cli.Context) (err error) {
	args, err := positionalArgs(c, 1, false)
	if err != nil {
		return err
	}
	sourceName := args[0]
	logger, closeLog := newLogger(c, fmt.Sprintf("posilog[%s]", sourceName))
	defer closeLog()

	out, err := poslogger.Create(c.Path(logFlagOutput), nil)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, out.Close())
	}()
	source := shmem.NewClient[datatypes.Position2D](sourceName, datatypes.PositionCodec{}, logger)
	return runSinkProcess(c.Context, source, out.Consume, nil, logger)
}

// CleanAction removes stale segments by name.
func CleanAction(c *cli.Context) error {
	args, err := positionalArgs(c, 1, true)
	if err != nil {
		return err
	}
	var errs error
	for _, name := range args {
		if !shmem.SegmentExists(name) {
			printf(c, "%s: no such segment", name)
			continue
		}
		if err := shmem.DestroySegment(name); err != nil {
			errs = multierr.Combine(errs, errors.Wrapf(err, "removing %q", name))
			continue
		}
		printf(c, "%s: removed", name)
	}
	return errs
}
