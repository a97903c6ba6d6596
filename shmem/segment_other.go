//go:build !linux && !darwin

package shmem

import (
	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
)

var errUnsupported = errors.New("shared memory segments are not supported on this platform")

// CreateSegment is not supported on this platform.
func CreateSegment(name string, tag datatypes.LayoutTag, capacity int) (*Segment, error) {
	return nil, errUnsupported
}

// OpenSegment is not supported on this platform.
func OpenSegment(name string) (*Segment, error) {
	return nil, errUnsupported
}

// DestroySegment is not supported on this platform.
func DestroySegment(name string) error {
	return errUnsupported
}

// SegmentExists always reports false on this platform.
func SegmentExists(name string) bool {
	return false
}

// Close is a no-op on this platform.
func (s *Segment) Close() error {
	return nil
}
