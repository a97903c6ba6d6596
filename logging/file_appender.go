package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes console formatted lines to a file that is rotated once it grows past
// MaxSizeMB. Rotated files are compressed and only the most recent few are kept.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// Log file rotation settings.
const (
	MaxSizeMB  = 100
	MaxBackups = 3
)

// NewFileAppender returns an appender writing to path. The file is opened on the first write.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: ConsoleAppender{file}, file: file}
}

// Close closes the current log file. A later write reopens it.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}
