package shmem

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyExists is returned when creating a segment whose name is already live.
	ErrAlreadyExists = errors.New("segment already exists")
	// ErrNotFound is returned when opening a segment nobody has created.
	ErrNotFound = errors.New("segment not found")
	// ErrLayoutMismatch is returned when a sample or a reader disagrees with a segment's layout.
	ErrLayoutMismatch = errors.New("sample layout mismatch")
	// ErrInsufficientStorage is returned when the backing memory cannot be sized or mapped.
	ErrInsufficientStorage = errors.New("insufficient shared memory")
	// ErrCorruptHeader is returned when a segment header fails validation.
	ErrCorruptHeader = errors.New("corrupt segment header")
	// ErrInvalidName is returned for segment names that cannot map to a backing file.
	ErrInvalidName = errors.New("invalid segment name")

	// ErrNotBound is returned when publishing on a server that has not been bound.
	ErrNotBound = errors.New("server is not bound")
	// ErrEnded is returned when publishing after end of stream was signalled.
	ErrEnded = errors.New("stream has ended")
	// ErrClosed is returned by operations on a closed server.
	ErrClosed = errors.New("server is closed")
	// ErrNotAttached is returned when reading from a client that is not attached.
	ErrNotAttached = errors.New("client is not attached")
)

// BindError reports a failure to create the segment a Server publishes into.
type BindError struct {
	Name string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind segment %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause so errors.Is can match ErrAlreadyExists and friends.
func (e *BindError) Unwrap() error {
	return e.Err
}
