package shmem

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
)

// ServerState is the lifecycle of a Server.
type ServerState int

const (
	// ServerUnbound is a server that has no segment yet.
	ServerUnbound ServerState = iota
	// ServerBound is a server with a segment and nothing published.
	ServerBound
	// ServerRunning is a server that has published at least once.
	ServerRunning
	// ServerEnded is a server that has signalled end of stream.
	ServerEnded
	// ServerClosed is a server whose segment has been released.
	ServerClosed
)

func (s ServerState) String() string {
	switch s {
	case ServerUnbound:
		return "unbound"
	case ServerBound:
		return "bound"
	case ServerRunning:
		return "running"
	case ServerEnded:
		return "ended"
	case ServerClosed:
		return "closed"
	}
	return fmt.Sprintf("ServerState(%d)", int(s))
}

// Server is the single writer of a named segment.
type Server[T any] struct {
	name   string
	codec  datatypes.Codec[T]
	logger logging.Logger

	mu        sync.Mutex
	state     ServerState
	seg       *Segment
	turn      turnstile
	published uint64
}

// NewServer returns an unbound server for the segment called name.
func NewServer[T any](name string, codec datatypes.Codec[T], logger logging.Logger) *Server[T] {
	return &Server[T]{name: name, codec: codec, logger: logger}
}

// Name returns the name of the segment the server writes.
func (s *Server[T]) Name() string {
	return s.name
}

// State returns the server's lifecycle state.
func (s *Server[T]) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Published returns the number of samples published so far.
func (s *Server[T]) Published() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// ReaderCount returns the number of clients attached to the segment, or 0 when unbound.
func (s *Server[T]) ReaderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seg == nil {
		return 0
	}
	return s.seg.ReaderCount()
}

// Bind creates the segment with a payload slot of capacity bytes. A capacity of zero or less uses
// the codec's fixed sample size. Fails with a *BindError if the name is already live.
func (s *Server[T]) Bind(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case ServerUnbound:
	case ServerClosed:
		return ErrClosed
	case ServerBound, ServerRunning, ServerEnded:
		return errors.Errorf("server %q is already bound", s.name)
	}
	if capacity <= 0 {
		capacity = s.codec.FixedSize()
	}
	if capacity <= 0 {
		return &BindError{Name: s.name, Err: errors.Errorf("no slot capacity for %v samples", s.codec.Tag())}
	}

	seg, err := CreateSegment(s.name, s.codec.Tag(), capacity)
	if err != nil {
		return &BindError{Name: s.name, Err: err}
	}
	s.seg = seg
	s.turn = newTurnstile(seg.hdr)
	s.state = ServerBound
	s.logger.Debugw("bound segment", "segment", s.name, "layout", s.codec.Tag(), "capacity", capacity)
	return nil
}

// Publish writes sample into the slot, replacing whatever was there, and wakes every reader. It
// never waits for readers.
func (s *Server[T]) Publish(sample T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case ServerBound, ServerRunning:
	case ServerEnded:
		return ErrEnded
	case ServerClosed:
		return ErrClosed
	case ServerUnbound:
		return ErrNotBound
	}

	n := s.codec.Size(sample)
	if n > s.seg.Capacity() {
		return errors.Wrapf(ErrLayoutMismatch, "%d byte sample does not fit the %d byte slot of %q",
			n, s.seg.Capacity(), s.name)
	}
	dst, err := s.seg.slot.Slice(n)
	if err != nil {
		return err
	}

	hdr := s.seg.hdr
	seq := hdr.Seq()
	hdr.storeSeq(seq+1)
	if err := s.codec.Encode(dst, sample); err != nil {
		// Codecs validate before writing, so the slot still holds the previous sample.
		hdr.storeSeq(seq)
		return errors.Wrapf(err, "encode sample for %q", s.name)
	}
	hdr.storePayloadLen(n)
	hdr.storeSeq(seq+2)

	if s.state == ServerBound {
		hdr.advanceRunState(RunStateRunning)
		s.state = ServerRunning
	}
	s.published++
	s.turn.Advance()
	return nil
}

// SignalEnd marks the stream as ended and wakes every reader. Readers that have seen every sample
// get ReadEndOfStream from then on. Calling it again does nothing.
func (s *Server[T]) SignalEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signalEndLocked()
}

func (s *Server[T]) signalEndLocked() error {
	switch s.state {
	case ServerBound, ServerRunning:
	case ServerEnded:
		return nil
	case ServerClosed:
		return ErrClosed
	case ServerUnbound:
		return ErrNotBound
	}
	s.seg.hdr.advanceRunState(RunStateEnd)
	s.state = ServerEnded
	s.turn.Advance()
	s.logger.Debugw("signalled end of stream", "segment", s.name, "published", s.published)
	return nil
}

// Close ends the stream if it has not ended, then unmaps and unlinks the segment. Readers already
// attached keep their mapping and see end of stream. Closing twice is a no-op.
func (s *Server[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case ServerClosed:
		return nil
	case ServerUnbound:
		s.state = ServerClosed
		return nil
	case ServerBound, ServerRunning, ServerEnded:
	}
	err := s.signalEndLocked()
	err = multierr.Combine(err, s.seg.Close(), DestroySegment(s.name))
	s.seg = nil
	s.state = ServerClosed
	return err
}
