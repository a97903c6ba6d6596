//go:build unix

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

func notifySnapshot(sigs chan<- os.Signal) {
	signal.Notify(sigs, syscall.SIGUSR1)
}
