//go:build linux

package shmem

import (
	"math"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Shared (not FUTEX_PRIVATE_FLAG) operations, since waiters and wakers live in different processes.
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

// futexWait blocks while *addr == val, for at most timeout. A timeout returns errWaitTimeout.
// Spurious and value-changed returns are reported as nil; callers re-check their condition.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWaitOp,
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0, 0,
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	case unix.ETIMEDOUT:
		return errWaitTimeout
	default:
		return errors.Wrap(errno, "futex wait")
	}
}

// futexWake wakes every waiter on addr.
func futexWake(addr *uint32) {
	//nolint:errcheck
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeOp,
		uintptr(math.MaxInt32),
		0, 0, 0,
	)
}
