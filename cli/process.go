package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/config"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/pipeline"
	"go.viam.com/framepipe/shmem"
	"go.viam.com/framepipe/utils"
)

// newLogger returns the logger of one pipeline process and a func releasing its log file.
func newLogger(c *cli.Context, name string) (logging.Logger, func()) {
	logger := logging.NewLogger(name)
	// The level was checked before any command ran.
	if level, err := logging.LevelFromString(c.String(generalFlagLogLevel)); err == nil {
		logger.SetLevel(level)
	}
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	closeLog := func() {}
	if path := c.Path(generalFlagLogFile); path != "" {
		file := logging.NewFileAppender(path)
		logger.AddAppender(file)
		closeLog = func() { goutils.UncheckedError(file.Close()) }
	}
	utils.LogEnvVariables("framepipe environment", logger)
	return logger, closeLog
}

// attachContext bounds waiting for a source segment by the attach timeout, if one is set.
func attachContext(ctx context.Context, logger logging.Logger) (context.Context, func()) {
	if timeout := utils.GetAttachTimeout(logger); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

// attachSource attaches to source, waiting for it to appear and complaining while it does not.
func attachSource[T any](ctx context.Context, source *shmem.Client[T], logger logging.Logger) error {
	attachCtx, cancel := attachContext(ctx, logger)
	defer cancel()
	stop := utils.SlowLogger(attachCtx, "waiting for source segment", "source", source.Name(), logger)
	defer stop()
	if err := source.AttachWait(attachCtx); err != nil {
		return interruptedIsClean(ctx, err)
	}
	logger.Infow("listening to source", "source", source.Name())
	return nil
}

// positionalArgs returns the first n arguments, failing if there are fewer. With variadic set,
// extra arguments are allowed and returned too.
func positionalArgs(c *cli.Context, n int, variadic bool) ([]string, error) {
	args := c.Args().Slice()
	if len(args) < n || (!variadic && len(args) > n) {
		return nil, errors.Errorf("%s expects arguments %s, got %d",
			c.Command.Name, c.Command.ArgsUsage, len(args))
	}
	return args, nil
}

// readComponentConfig fills out from the --config file when one is given. The table defaults to
// the command name.
func readComponentConfig(c *cli.Context, out config.Validator, logger logging.Logger) error {
	path := c.Path(generalFlagConfig)
	if path == "" {
		if c.IsSet(generalFlagConfigKey) {
			return errors.Errorf("--%s needs --%s", generalFlagConfigKey, generalFlagConfig)
		}
		return nil
	}
	key := c.String(generalFlagConfigKey)
	if key == "" {
		key = c.Command.Name
	}
	return config.Read(c.Context, path, key, out, logger)
}

// runTransformProcess attaches to source, binds sink with the capacity returned by sinkCapacity,
// and runs fn over the stream. Both segments are released however it stops.
func runTransformProcess[In, Out any](
	ctx context.Context,
	source *shmem.Client[In],
	sink *shmem.Server[Out],
	sinkCapacity func(sourceCapacity int) int,
	fn pipeline.TransformFunc[In, Out],
	logger logging.Logger,
) (err error) {
	defer func() {
		err = multierr.Combine(err, source.Detach(), sink.Close())
	}()
	if err := attachSource(ctx, source, logger); err != nil {
		return err
	}
	if err := sink.Bind(sinkCapacity(source.Capacity())); err != nil {
		return err
	}
	logger.Infow("streaming to sink", "sink", sink.Name())
	return pipeline.RunTransform(ctx, source, sink, fn, logger)
}

// runSinkProcess attaches to source and feeds every sample to fn.
func runSinkProcess[In any](
	ctx context.Context,
	source *shmem.Client[In],
	fn pipeline.SinkFunc[In],
	onAttach func(),
	logger logging.Logger,
) (err error) {
	defer func() {
		err = multierr.Combine(err, source.Detach())
	}()
	if err := attachSource(ctx, source, logger); err != nil {
		return err
	}
	if onAttach != nil {
		onAttach()
	}
	return pipeline.RunSink(ctx, source, fn, logger)
}

// interruptedIsClean turns an error caused by the operator stopping the process into a clean
// exit.
func interruptedIsClean(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func printf(c *cli.Context, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(c.App.Writer, format+"\n", a...)
}
