//go:build linux || darwin

package shmem

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sys/unix"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/utils"
)

const shmDir = "/dev/shm"

func segmentDir() string {
	if dir := utils.SegmentDir(); dir != "" {
		return dir
	}
	if fi, err := os.Stat(shmDir); err == nil && fi.IsDir() {
		return shmDir
	}
	return os.TempDir()
}

func segmentPath(name string) string {
	return filepath.Join(segmentDir(), segmentPrefix+name)
}

// CreateSegment creates and maps a new segment with a payload slot of capacity bytes. The header
// is fully initialized before the name becomes visible, so an opener never sees a partial header.
func CreateSegment(name string, tag datatypes.LayoutTag, capacity int) (*Segment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, errors.Wrapf(ErrInsufficientStorage, "capacity %d out of range (1-%d)", capacity, MaxCapacity)
	}
	path := segmentPath(name)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "%q", name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrapf(ErrInsufficientStorage, "create %q: %v", name, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		goutils.UncheckedError(tmp.Close())
		goutils.UncheckedError(os.Remove(tmpPath))
	}()

	size := segmentSize(capacity)
	if err := tmp.Truncate(int64(size)); err != nil {
		return nil, errors.Wrapf(ErrInsufficientStorage, "size %q to %d bytes: %v", name, size, err)
	}
	mem, err := unix.Mmap(int(tmp.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(ErrInsufficientStorage, "map %q: %v", name, err)
	}
	unmap := utils.NewGuard(func() { goutils.UncheckedError(unix.Munmap(mem)) })
	defer unmap.OnFail()
	hdr := (*header)(unsafe.Pointer(&mem[0]))
	hdr.init(tag, capacity, os.Getpid())

	if err := os.Link(tmpPath, path); err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrAlreadyExists, "%q", name)
		}
		return nil, errors.Wrapf(err, "publish segment %q", name)
	}
	unmap.Success()
	return newSegment(name, path, mem, capacity), nil
}

// OpenSegment maps an existing segment and validates its header.
func OpenSegment(name string) (*Segment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%q", name)
		}
		return nil, errors.Wrapf(err, "open segment %q", name)
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat segment %q", name)
	}
	if fi.Size() < HeaderSize || fi.Size() > HeaderSize+MaxCapacity {
		return nil, errors.Wrapf(ErrCorruptHeader, "segment %q is %d bytes", name, fi.Size())
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(ErrInsufficientStorage, "map %q: %v", name, err)
	}
	unmap := utils.NewGuard(func() { goutils.UncheckedError(unix.Munmap(mem)) })
	defer unmap.OnFail()
	hdr := (*header)(unsafe.Pointer(&mem[0]))
	if err := hdr.validate(len(mem)); err != nil {
		return nil, errors.Wrapf(err, "segment %q", name)
	}
	unmap.Success()
	return newSegment(name, path, mem, int(hdr.capacity)), nil
}

// DestroySegment unlinks a segment. Existing mappings stay valid until they are closed. Destroying
// a segment that does not exist is not an error.
func DestroySegment(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(segmentPath(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "destroy segment %q", name)
	}
	return nil
}

// SegmentExists reports whether a segment with the given name is live.
func SegmentExists(name string) bool {
	if validateName(name) != nil {
		return false
	}
	_, err := os.Stat(segmentPath(name))
	return err == nil
}

func newSegment(name, path string, mem []byte, capacity int) *Segment {
	return &Segment{
		name: name,
		path: path,
		mem:  mem,
		hdr:  (*header)(unsafe.Pointer(&mem[0])),
		slot: payloadView{buf: mem[HeaderSize : HeaderSize+capacity : HeaderSize+capacity]},
	}
}

// Close unmaps the segment. It does not unlink it.
func (s *Segment) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Munmap(s.mem); err != nil {
		return errors.Wrapf(err, "unmap segment %q", s.name)
	}
	return nil
}
