//go:build !unix

package cli

import "os"

// Snapshots cannot be requested by signal here.
func notifySnapshot(chan<- os.Signal) {}
