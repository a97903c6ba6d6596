package shmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
)

const (
	segmentMagic   = "FPIPESHM"
	segmentVersion = 1

	// HeaderSize is the size of the header at the start of every segment.
	HeaderSize = 128

	// MaxCapacity bounds the payload slot of a single segment.
	MaxCapacity = 1 << 30

	segmentPrefix = "framepipe_"
)

// header is the layout of the first HeaderSize bytes of a segment. Every field other than magic
// and the immutable geometry is accessed atomically.
type header struct {
	magic       [8]byte
	version     uint32
	layoutTag   uint32
	runState    uint32
	readerCount uint32
	wake        uint32
	writerPID   uint32
	seq         uint64
	capacity    uint64
	payloadLen  uint64
	slotOffset  uint64
	_           [64]byte
}

func init() {
	if unsafe.Sizeof(header{}) != HeaderSize {
		panic("shmem: header size mismatch")
	}
	var h header
	if unsafe.Offsetof(h.seq) != 0x20 || unsafe.Offsetof(h.wake) != 0x18 {
		panic("shmem: header layout mismatch")
	}
}

func (h *header) init(tag datatypes.LayoutTag, capacity, pid int) {
	copy(h.magic[:], segmentMagic)
	h.version = segmentVersion
	h.layoutTag = uint32(tag)
	h.capacity = uint64(capacity)
	h.slotOffset = HeaderSize
	h.writerPID = uint32(pid)
	atomic.StoreUint32(&h.runState, uint32(RunStateInit))
	atomic.StoreUint32(&h.readerCount, 0)
	atomic.StoreUint32(&h.wake, 0)
	atomic.StoreUint64(&h.payloadLen, 0)
	atomic.StoreUint64(&h.seq, 0)
}

func (h *header) validate(mappedSize int) error {
	if string(h.magic[:]) != segmentMagic {
		return errors.Wrap(ErrCorruptHeader, "bad magic")
	}
	if h.version != segmentVersion {
		return errors.Wrapf(ErrCorruptHeader, "version %d, expected %d", h.version, segmentVersion)
	}
	if h.slotOffset != HeaderSize {
		return errors.Wrapf(ErrCorruptHeader, "slot offset %d", h.slotOffset)
	}
	if h.capacity > MaxCapacity || int(h.slotOffset+h.capacity) > mappedSize {
		return errors.Wrapf(ErrCorruptHeader, "capacity %d does not fit a %d byte mapping", h.capacity, mappedSize)
	}
	if RunState(atomic.LoadUint32(&h.runState)) > RunStateEnd {
		return errors.Wrapf(ErrCorruptHeader, "run state %d", atomic.LoadUint32(&h.runState))
	}
	return nil
}

func (h *header) RunState() RunState {
	return RunState(atomic.LoadUint32(&h.runState))
}

// advanceRunState moves the run state forward to next. Moving backwards is a no-op.
func (h *header) advanceRunState(next RunState) {
	for {
		cur := atomic.LoadUint32(&h.runState)
		if cur >= uint32(next) {
			return
		}
		if atomic.CompareAndSwapUint32(&h.runState, cur, uint32(next)) {
			return
		}
	}
}

func (h *header) Seq() uint64 {
	return atomic.LoadUint64(&h.seq)
}

func (h *header) storeSeq(seq uint64) {
	atomic.StoreUint64(&h.seq, seq)
}

func (h *header) PayloadLen() int {
	return int(atomic.LoadUint64(&h.payloadLen))
}

func (h *header) storePayloadLen(n int) {
	atomic.StoreUint64(&h.payloadLen, uint64(n))
}

// seqUnchanged reports whether seq still equals want. The compare-and-swap stores the value it
// read, so it changes nothing, but it orders every earlier slot read before the check.
func (h *header) seqUnchanged(want uint64) bool {
	return atomic.CompareAndSwapUint64(&h.seq, want, want)
}

func (h *header) ReaderCount() int {
	return int(atomic.LoadUint32(&h.readerCount))
}

func (h *header) addReader() int {
	return int(atomic.AddUint32(&h.readerCount, 1))
}

func (h *header) removeReader() {
	for {
		cur := atomic.LoadUint32(&h.readerCount)
		if cur == 0 {
			return
		}
		if atomic.CompareAndSwapUint32(&h.readerCount, cur, cur-1) {
			return
		}
	}
}

// payloadView is the bounds-checked window onto a segment's payload slot.
type payloadView struct {
	buf []byte
}

func (p payloadView) Cap() int {
	return len(p.buf)
}

// Slice returns the first n bytes of the slot.
func (p payloadView) Slice(n int) ([]byte, error) {
	if n < 0 || n > len(p.buf) {
		return nil, errors.Wrapf(ErrCorruptHeader, "payload length %d outside slot of %d bytes", n, len(p.buf))
	}
	return p.buf[:n:n], nil
}

// Segment is a mapped shared-memory segment.
type Segment struct {
	name string
	path string
	mem  []byte
	hdr  *header
	slot payloadView

	closed atomic.Bool
}

// Name returns the segment's name.
func (s *Segment) Name() string {
	return s.name
}

// Path returns the backing file of the segment.
func (s *Segment) Path() string {
	return s.path
}

// Capacity returns the size of the payload slot in bytes.
func (s *Segment) Capacity() int {
	return s.slot.Cap()
}

// Layout returns the layout tag the segment was created with.
func (s *Segment) Layout() datatypes.LayoutTag {
	return datatypes.LayoutTag(s.hdr.layoutTag)
}

// RunState returns the writer's run state.
func (s *Segment) RunState() RunState {
	return s.hdr.RunState()
}

// ReaderCount returns the number of attached clients.
func (s *Segment) ReaderCount() int {
	return s.hdr.ReaderCount()
}

// WriterPID returns the pid of the process that created the segment.
func (s *Segment) WriterPID() int {
	return int(s.hdr.writerPID)
}

func validateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	for _, r := range name {
		if r == '/' || r == 0 {
			return errors.Wrapf(ErrInvalidName, "%q", name)
		}
	}
	return nil
}

func segmentSize(capacity int) int {
	return HeaderSize + capacity
}
