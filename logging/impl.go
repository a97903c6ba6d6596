package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for logging to.
type Logger interface {
	ZapCompatibleLogger

	SetLevel(level Level)
	GetLevel() Level
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	AsZap() *zap.SugaredLogger
}

// ZapCompatibleLogger is the subset of a `*zap.SugaredLogger` the framepipe processes use. It is
// also what `go.viam.com/utils.ContextualMain` expects of its logger.
type ZapCompatibleLogger interface {
	Desugar() *zap.Logger
	Level() zapcore.Level
	Named(name string) *zap.SugaredLogger
	Sync() error
	With(args ...interface{}) *zap.SugaredLogger
	WithOptions(opts ...zap.Option) *zap.SugaredLogger

	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
}

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.GetLevel().AsZap()
}

// Sublogger returns a logger named "<parent>.<subname>" that shares the parent's appenders but
// carries its own level.
func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = imp.name + "." + subname
	}
	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.AsZap().Named(name)
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.AsZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.AsZap().WithOptions(opts...)
}

// AsZap builds a sugared zap logger writing to stdout plus every appender that is itself a
// zapcore.Core, such as the observer used by tests.
func (imp *impl) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = GlobalLogLevel
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)
	for _, appender := range imp.appenders {
		core, ok := appender.(zapcore.Core)
		if !ok {
			continue
		}
		ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}
	return ret
}

func (imp *impl) enabled(level Level) bool {
	return GlobalLogLevel.Level() == zapcore.DebugLevel || level >= imp.level.Get()
}

// message defers formatting until the level check has passed.
type message func() string

func sprint(args []interface{}) message {
	return func() string { return fmt.Sprint(args...) }
}

func sprintf(template string, args []interface{}) message {
	return func() string { return fmt.Sprintf(template, args...) }
}

func literal(msg string) message {
	return func() string { return msg }
}

// logAt and fatal must be called directly from the exported methods: the caller lookup skips a
// fixed number of frames.
func (imp *impl) logAt(level Level, msg message, keysAndValues []interface{}) {
	if !imp.enabled(level) {
		return
	}
	imp.write(imp.entry(level, msg, keysAndValues))
}

func (imp *impl) fatal(msg message, keysAndValues []interface{}) {
	imp.write(imp.entry(ERROR, msg, keysAndValues))
	os.Exit(1)
}

func (imp *impl) entry(level Level, msg message, keysAndValues []interface{}) (zapcore.Entry, []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg(),
		Caller:     callerOfLogMethod(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	return entry, fieldsOf(keysAndValues)
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// fieldsOf pairs up alternating keys and values. A trailing key without a value is kept with an
// error in its place.
func fieldsOf(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.logAt(DEBUG, sprint(args), nil) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.logAt(DEBUG, sprintf(template, args), nil)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.logAt(DEBUG, literal(msg), keysAndValues)
}

func (imp *impl) Info(args ...interface{}) { imp.logAt(INFO, sprint(args), nil) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.logAt(INFO, sprintf(template, args), nil)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.logAt(INFO, literal(msg), keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) { imp.logAt(WARN, sprint(args), nil) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.logAt(WARN, sprintf(template, args), nil)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.logAt(WARN, literal(msg), keysAndValues)
}

func (imp *impl) Error(args ...interface{}) { imp.logAt(ERROR, sprint(args), nil) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.logAt(ERROR, sprintf(template, args), nil)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.logAt(ERROR, literal(msg), keysAndValues)
}

// Fatal logs at error level regardless of the configured level, then exits.
func (imp *impl) Fatal(args ...interface{}) { imp.fatal(sprint(args), nil) }

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.fatal(sprintf(template, args), nil)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.fatal(literal(msg), keysAndValues)
}

// callerOfLogMethod reports the code that called Info, Warnw and friends. The frames skipped are
// this function, entry, logAt (or fatal) and the exported method.
func callerOfLogMethod() zapcore.EntryCaller {
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(4)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
