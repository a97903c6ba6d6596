package utils

import (
	"os"
	"strings"
	"time"

	"go.viam.com/framepipe/logging"
)

const (
	// EnvVarPrefix is the prefix for all framepipe environment variables.
	EnvVarPrefix = "FRAMEPIPE_"

	// SegmentDirEnvVar is the environment variable that can be set to put segments somewhere other
	// than /dev/shm. Every process of a pipeline must agree on it.
	SegmentDirEnvVar = "FRAMEPIPE_SHM_DIR"

	// AttachTimeoutEnvVar is the environment variable that can be set to bound how long a process
	// waits for its source segment to appear. Unset means forever.
	AttachTimeoutEnvVar = "FRAMEPIPE_ATTACH_TIMEOUT"
)

// SegmentDir returns the directory override for segments, or "" if there is none.
func SegmentDir() string {
	return os.Getenv(SegmentDirEnvVar)
}

// GetAttachTimeout returns the attach timeout from the environment, or 0 to wait forever.
func GetAttachTimeout(logger logging.Logger) time.Duration {
	return timeoutHelper(0, AttachTimeoutEnvVar, logger)
}

func timeoutHelper(defaultTimeout time.Duration, timeoutEnvVar string, logger logging.Logger) time.Duration {
	if timeoutVal := os.Getenv(timeoutEnvVar); timeoutVal != "" {
		timeout, err := time.ParseDuration(timeoutVal)
		if err != nil || timeout < 0 {
			logger.Warnf("Failed to parse %s env var %q, falling back to default %v timeout",
				timeoutEnvVar, timeoutVal, defaultTimeout)
			return defaultTimeout
		}
		return timeout
	}
	return defaultTimeout
}

// LogEnvVariables logs the framepipe environment variables in [os.Environ].
func LogEnvVariables(msg string, logger logging.Logger) {
	var env []string
	for _, v := range os.Environ() {
		if strings.HasPrefix(v, EnvVarPrefix) {
			env = append(env, v)
		}
	}
	if len(env) != 0 {
		logger.Debugw(msg, "environment", env)
	}
}
