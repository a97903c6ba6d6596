package logging

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type segmentInfo struct {
	Name     string
	Capacity int
	tag      uint32
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[4]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[4]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	logging/impl_test.go:67	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764Z	INFO	logging/impl_test.go:131	impl infof log`)

	logger.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	logging/impl_test.go:132	impl logw	{"key":"value"}`)

	// Only public fields are serialized.
	logger.Infow("segment", "segment", segmentInfo{"cam0", 64, 2})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	INFO	logging/impl_test.go:121	segment	{"segment":{"Name":"cam0","Capacity":64}}`)

	// An unpaired key is kept with an error value rather than dropped.
	logger.Warnw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	WARN	logging/impl_test.go:121	unpaired	{"lonely":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Error("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	ERROR	logging/impl_test.go:67	kept`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debugf("now %s", "kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	logging/impl_test.go:67	now kept`)
}

func TestSublogger(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"buffer", NewAtomicLevelAt(INFO), true, []Appender{NewWriterAppender(notStdout)}}

	sub := logger.Sublogger("cam0")
	sub.Info("hello")
	parts := strings.Split(strings.TrimSuffix(notStdout.String(), "\n"), "\t")
	test.That(t, parts, test.ShouldHaveLength, 5)
	test.That(t, parts[2], test.ShouldEqual, "buffer.cam0")
	test.That(t, parts[4], test.ShouldEqual, "hello")

	// Changing the sublogger level leaves the parent alone.
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("streaming", "sink", "pos0")
	logger.Debug("detail")

	test.That(t, logs.FilterMessage("streaming").Len(), test.ShouldEqual, 1)
	entry := logs.FilterMessage("streaming").All()[0]
	test.That(t, entry.ContextMap()["sink"], test.ShouldEqual, "pos0")
	test.That(t, logs.Len(), test.ShouldEqual, 2)
}
