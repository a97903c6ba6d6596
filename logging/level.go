package logging

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is an enum of log levels. Its value can be `DEBUG`, `INFO`, `WARN` or `ERROR`.
type Level int

const (
	// DEBUG log level.
	DEBUG Level = iota - 1
	// INFO log level.
	INFO
	// WARN log level.
	WARN
	// ERROR log level.
	ERROR
)

// GlobalLogLevel is the level the zap views of every logger observe. Raising it to debug makes
// all loggers emit debug output regardless of their own level.
var GlobalLogLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	}

	return "Level(" + strconv.Itoa(int(level)) + ")"
}

// AsZap converts the Level to a `zapcore.Level`.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	}

	// Unknown levels map to the most verbose output.
	return zapcore.DebugLevel
}

// LevelFromString parses an input string to a log level. The string must be one of `debug`,
// `info`, `warn` or `error`. The parsing is case-insensitive. An error is returned if the input
// does not match one of labeled cases.
func LevelFromString(inp string) (Level, error) {
	switch strings.ToLower(inp) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}

	return DEBUG, errors.Errorf("unknown log level: %q", inp)
}

// AtomicLevel is a level that can be concurrently accessed.
type AtomicLevel struct {
	val *atomic.Int32
}

// NewAtomicLevelAt creates a new AtomicLevel at the input `initLevel`.
func NewAtomicLevelAt(initLevel Level) AtomicLevel {
	ret := AtomicLevel{
		val: &atomic.Int32{},
	}
	ret.Set(initLevel)
	return ret
}

// Set changes the level.
func (level AtomicLevel) Set(newLevel Level) {
	level.val.Store(int32(newLevel))
}

// Get returns the level.
func (level AtomicLevel) Get() Level {
	return Level(level.val.Load())
}
