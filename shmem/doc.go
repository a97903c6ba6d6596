// Package shmem implements the shared-memory exchange between framepipe processes.
//
// A segment is a named shared-memory region holding a fixed 128-byte header followed by one
// payload slot. Exactly one Server writes a segment; any number of Clients attach to it and read.
//
// Delivery is last-value-wins: Publish never waits for readers, so a slow reader skips the
// samples it was too slow to see and always reads the most recent one it has not yet seen.
// Readers never observe a partial write: the slot is guarded by a sequence lock, and the header's
// wake word is a futex the writer bumps after every publish and at end of stream.
//
// The run state moves INIT -> RUNNING -> END and never back. Once END is visible and a reader has
// consumed every sample it had not yet seen, every Read returns ReadEndOfStream.
package shmem
