package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so an
// observer core can be appended directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable log lines: a tab separated time, level, logger name,
// caller, message and, when present, the structured fields as a JSON object.
type ConsoleAppender struct {
	io.Writer
}

// NewStderrAppender creates a new appender that outputs to stderr. Processes whose stdout is
// part of a pipeline log here.
func NewStderrAppender() ConsoleAppender {
	return ConsoleAppender{os.Stderr}
}

// NewWriterAppender creates a new appender that outputs to the input writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, encodeErr := formatLine(entry, fields)
	if _, err := fmt.Fprintln(appender.Writer, line); err != nil {
		return err
	}
	return encodeErr
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// formatLine renders an entry as tab separated columns. Fields are encoded in order by zap's JSON
// encoder. When they fail to encode the line is still returned, without them.
func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	columns := []string{entry.Time.Format(DefaultTimeFormatStr), strings.ToUpper(entry.Level.String())}
	if entry.LoggerName != "" {
		columns = append(columns, entry.LoggerName)
	}
	if entry.Caller.Defined {
		columns = append(columns, entry.Caller.TrimmedPath())
	}
	columns = append(columns, entry.Message)
	if len(fields) == 0 {
		return strings.Join(columns, "\t"), nil
	}

	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return strings.Join(columns, "\t"), err
	}
	defer buf.Free()
	return strings.Join(append(columns, buf.String()), "\t"), nil
}
