package utils

import (
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/framepipe/logging"
)

func TestEnv(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)

	t.Setenv(SegmentDirEnvVar, "")
	test.That(t, SegmentDir(), test.ShouldEqual, "")
	t.Setenv(SegmentDirEnvVar, "/run/framepipe")
	test.That(t, SegmentDir(), test.ShouldEqual, "/run/framepipe")

	t.Setenv(AttachTimeoutEnvVar, "")
	test.That(t, GetAttachTimeout(logger), test.ShouldEqual, time.Duration(0))
	t.Setenv(AttachTimeoutEnvVar, "3s")
	test.That(t, GetAttachTimeout(logger), test.ShouldEqual, 3*time.Second)
	t.Setenv(AttachTimeoutEnvVar, "soon")
	test.That(t, GetAttachTimeout(logger), test.ShouldEqual, time.Duration(0))
	test.That(t, logs.FilterMessageSnippet("Failed to parse").Len(), test.ShouldEqual, 1)

	LogEnvVariables("framepipe environment", logger)
	entries := logs.FilterMessage("framepipe environment").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["environment"], test.ShouldContain, "FRAMEPIPE_ATTACH_TIMEOUT=soon")
}

func TestSafeJoinDir(t *testing.T) {
	dir := t.TempDir()
	joined, err := SafeJoinDir(dir, "snap.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined, test.ShouldEqual, filepath.Join(dir, "snap.png"))

	_, err = SafeJoinDir(dir, "../escape.png")
	test.That(t, err, test.ShouldNotBeNil)
}
