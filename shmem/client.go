package shmem

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
)

const (
	attachRetryInterval = 100 * time.Millisecond

	// A writer holding the seqlock is mid-copy; spin a little before sleeping on the turnstile.
	maxSeqSpins = 64
)

// ClientState is the lifecycle of a Client.
type ClientState int

const (
	// ClientUnbound is a client that has never attached.
	ClientUnbound ClientState = iota
	// ClientAttached is a client mapped onto a segment.
	ClientAttached
	// ClientDetached is a client that has released its segment.
	ClientDetached
)

func (s ClientState) String() string {
	switch s {
	case ClientUnbound:
		return "unbound"
	case ClientAttached:
		return "attached"
	case ClientDetached:
		return "detached"
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	readTimeout time.Duration
}

// WithReadTimeout gives every Read a timeout. Reads whose context already carries an earlier
// deadline keep that deadline.
func WithReadTimeout(timeout time.Duration) ClientOption {
	return func(opts *clientOptions) {
		opts.readTimeout = timeout
	}
}

// Client is a reader of a named segment. A Client is used by one reading goroutine at a time;
// CancelSelf may be called from anywhere.
type Client[T any] struct {
	name   string
	codec  datatypes.Codec[T]
	logger logging.Logger
	opts   clientOptions

	mu           sync.Mutex
	state        ClientState
	seg          *Segment
	turn         turnstile
	cursor       uint64
	ended        bool
	scratch      []byte
	readerNumber atomic.Int32

	// live is the attached segment, readable without mu so CancelSelf never blocks on a Read.
	live      atomic.Pointer[Segment]
	cancelled atomic.Bool
}

// NewClient returns an unattached client for the segment called name.
func NewClient[T any](name string, codec datatypes.Codec[T], logger logging.Logger, opts ...ClientOption) *Client[T] {
	c := &Client[T]{name: name, codec: codec, logger: logger}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

// Name returns the name of the segment the client reads.
func (c *Client[T]) Name() string {
	return c.name
}

// State returns the client's lifecycle state.
func (c *Client[T]) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attach maps the segment and registers this client as a reader. The segment's layout must match
// the client's codec.
func (c *Client[T]) Attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ClientAttached {
		return nil
	}
	seg, err := OpenSegment(c.name)
	if err != nil {
		return err
	}
	// The header is unreadable once the segment is closed, so errors are built first.
	if layout := seg.Layout(); layout != c.codec.Tag() {
		err := errors.Wrapf(ErrLayoutMismatch, "segment %q carries %v samples, client reads %v",
			c.name, layout, c.codec.Tag())
		return multierr.Combine(err, seg.Close())
	}
	if fixed, capacity := c.codec.FixedSize(), seg.Capacity(); fixed > 0 && capacity < fixed {
		err := errors.Wrapf(ErrLayoutMismatch, "segment %q slot is %d bytes, %v samples need %d",
			c.name, capacity, c.codec.Tag(), fixed)
		return multierr.Combine(err, seg.Close())
	}

	c.seg = seg
	c.turn = newTurnstile(seg.hdr)
	c.cursor = 0
	if seg.RunState() == RunStateEnd {
		// Nothing is unseen for a reader that arrives after the end.
		c.cursor = seg.hdr.Seq()
	}
	c.ended = false
	c.scratch = make([]byte, seg.Capacity())
	c.readerNumber.Store(int32(seg.hdr.addReader()))
	c.state = ClientAttached
	c.live.Store(seg)
	c.logger.Debugw("attached to segment", "segment", c.name, "layout", seg.Layout(),
		"capacity", seg.Capacity(), "reader", c.readerNumber.Load())
	return nil
}

// AttachWait attaches, retrying while the segment does not exist yet, until ctx is done.
func (c *Client[T]) AttachWait(ctx context.Context) error {
	for {
		err := c.Attach()
		if err == nil || !errors.Is(err, ErrNotFound) {
			return err
		}
		if !goutils.SelectContextOrWait(ctx, attachRetryInterval) {
			return errors.Wrapf(ctx.Err(), "waiting for segment %q", c.name)
		}
	}
}

// Read blocks until a sample newer than the last one this client read is available and returns a
// copy of it. Samples published while the client was not reading are skipped; only the latest is
// returned. Once the writer has ended the stream and nothing unseen remains, Read returns
// ReadEndOfStream forever.
//
// A cancelled ctx or CancelSelf yields ReadInterrupted; an expired deadline yields ReadTimedOut.
// ReadFailed is accompanied by an error.
func (c *Client[T]) Read(ctx context.Context) (T, ReadStatus, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientAttached {
		return zero, ReadFailed, errors.Wrapf(ErrNotAttached, "%q", c.name)
	}
	if c.ended {
		return zero, ReadEndOfStream, nil
	}
	if c.opts.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.readTimeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, c.turn.Nudge)
	defer stop()

	hdr := c.seg.hdr
	spins := 0
	for {
		if c.cancelled.CompareAndSwap(true, false) {
			return zero, ReadInterrupted, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, statusForContext(err), nil
		}

		turn := c.turn.Observe()
		state := hdr.RunState()
		seq := hdr.Seq()

		switch {
		case seq%2 == 1:
			if spins < maxSeqSpins {
				spins++
				runtime.Gosched()
				continue
			}
		case seq != 0 && seq != c.cursor:
			sample, ok, err := c.copyOut(seq)
			if err != nil {
				return zero, ReadFailed, err
			}
			if ok {
				c.cursor = seq
				return sample, ReadOK, nil
			}
			continue
		case state == RunStateEnd:
			c.ended = true
			return zero, ReadEndOfStream, nil
		}
		spins = 0

		timeout := waitSlice
		if deadline, ok := ctx.Deadline(); ok {
			timeout = min(timeout, max(time.Until(deadline), time.Millisecond))
		}
		if err := c.turn.Wait(turn, timeout); err != nil && !errors.Is(err, errWaitTimeout) {
			return zero, ReadFailed, errors.Wrapf(err, "waiting on segment %q", c.name)
		}
	}
}

// copyOut copies the sample published as seq out of the slot. ok is false if the writer started
// another publish during the copy.
func (c *Client[T]) copyOut(seq uint64) (T, bool, error) {
	var zero T
	hdr := c.seg.hdr
	n := hdr.PayloadLen()
	if !hdr.seqUnchanged(seq) {
		return zero, false, nil
	}
	src, err := c.seg.slot.Slice(n)
	if err != nil {
		return zero, false, errors.Wrapf(err, "segment %q", c.name)
	}
	buf := c.scratch[:n]
	copy(buf, src)
	if !hdr.seqUnchanged(seq) {
		return zero, false, nil
	}
	sample, err := c.codec.Decode(buf)
	if err != nil {
		return zero, false, errors.Wrapf(err, "decode %v sample from %q", c.codec.Tag(), c.name)
	}
	return sample, true, nil
}

func statusForContext(err error) ReadStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReadTimedOut
	}
	return ReadInterrupted
}

// CancelSelf interrupts the current or next Read of this client, which returns ReadInterrupted.
// Safe to call from any goroutine, including signal handlers.
func (c *Client[T]) CancelSelf() {
	c.cancelled.Store(true)
	if seg := c.live.Load(); seg != nil {
		newTurnstile(seg.hdr).Nudge()
	}
}

// Detach unregisters this client and unmaps the segment. Detaching twice is a no-op. A blocked
// Read must be cancelled before Detach can proceed.
func (c *Client[T]) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ClientAttached {
		return nil
	}
	c.live.Store(nil)
	c.seg.hdr.removeReader()
	err := c.seg.Close()
	c.seg = nil
	c.scratch = nil
	c.state = ClientDetached
	c.logger.Debugw("detached from segment", "segment", c.name)
	return err
}

// The accessors below read the live segment without taking mu, so they may be used while another
// goroutine is blocked in Read, but not concurrently with Detach.

// Capacity returns the size of the segment's payload slot, or 0 when not attached.
func (c *Client[T]) Capacity() int {
	if seg := c.live.Load(); seg != nil {
		return seg.Capacity()
	}
	return 0
}

// Layout returns the layout tag of the attached segment.
func (c *Client[T]) Layout() datatypes.LayoutTag {
	if seg := c.live.Load(); seg != nil {
		return seg.Layout()
	}
	return datatypes.LayoutUnknown
}

// ReaderNumber returns how many readers were attached, this one included, when this client
// attached.
func (c *Client[T]) ReaderNumber() int {
	return int(c.readerNumber.Load())
}

// SourceRunState returns the writer's run state as seen in the segment header.
func (c *Client[T]) SourceRunState() RunState {
	if seg := c.live.Load(); seg != nil {
		return seg.RunState()
	}
	return RunStateInit
}
