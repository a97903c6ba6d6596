package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns a logger appender that logs to the underlying `testing.TB` object.
// Writing with `tb.Log` associates each line with the test that produced it, which matters once
// shared-memory tests run segments in parallel.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

// Write outputs the log entry to the underlying test object `Log` method.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}
