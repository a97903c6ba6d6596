package shmem

import "fmt"

// ReadStatus is the outcome of a Client Read.
type ReadStatus int

const (
	// ReadOK means a sample was read.
	ReadOK ReadStatus = iota
	// ReadEndOfStream means the writer ended the stream and every sample has been seen.
	ReadEndOfStream
	// ReadInterrupted means the read was cancelled by CancelSelf or its context.
	ReadInterrupted
	// ReadTimedOut means the read's deadline passed before a sample arrived.
	ReadTimedOut
	// ReadFailed means the read hit an error; the returned error says which.
	ReadFailed
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadEndOfStream:
		return "end of stream"
	case ReadInterrupted:
		return "interrupted"
	case ReadTimedOut:
		return "timed out"
	case ReadFailed:
		return "failed"
	}
	return fmt.Sprintf("ReadStatus(%d)", int(s))
}

// RunState is the writer's lifecycle as recorded in the segment header.
type RunState uint32

const (
	// RunStateInit is the state of a freshly bound segment with nothing published.
	RunStateInit RunState = iota
	// RunStateRunning is entered on the first publish.
	RunStateRunning
	// RunStateEnd is terminal: the writer will publish nothing more.
	RunStateEnd
)

func (s RunState) String() string {
	switch s {
	case RunStateInit:
		return "init"
	case RunStateRunning:
		return "running"
	case RunStateEnd:
		return "end"
	}
	return fmt.Sprintf("RunState(%d)", uint32(s))
}
