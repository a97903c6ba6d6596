package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines that can be stopped at a later time, or awaited
// when they finish on their own.
type StoppableWorkers interface {
	AddWorkers(...func(context.Context))
	Stop()
	Wait()
	Done() <-chan struct{}
	Context() context.Context
}

// stoppableWorkersImpl is the implementation of StoppableWorkers. Everything goes through the
// interface so the embedded sync.WaitGroup is never copied.
type stoppableWorkersImpl struct {
	mu                      sync.Mutex
	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewStoppableWorkers runs the functions in separate goroutines. They can be stopped later.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext is like NewStoppableWorkers, but the workers are also stopped
// when the parent context is cancelled.
func NewStoppableWorkersWithContext(parent context.Context, funcs ...func(context.Context)) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(parent)
	workers := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	workers.AddWorkers(funcs...)
	return workers
}

// AddWorkers starts up additional goroutines for each function passed in. If you call this after
// calling Stop(), it will return immediately without starting any new goroutines.
func (sw *stoppableWorkersImpl) AddWorkers(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil { // We've already stopped everything.
		return
	}

	sw.activeBackgroundWorkers.Add(len(funcs))
	for _, f := range funcs {
		f := f
		goutils.PanicCapturingGo(func() {
			defer sw.activeBackgroundWorkers.Done()
			f(sw.cancelCtx)
		})
	}
}

// Stop shuts down all the goroutines we started up.
func (sw *stoppableWorkersImpl) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cancelFunc()
	sw.activeBackgroundWorkers.Wait()
}

// Wait blocks until every worker has returned without cancelling them.
func (sw *stoppableWorkersImpl) Wait() {
	sw.activeBackgroundWorkers.Wait()
}

// Done returns a channel that is closed once every worker has returned.
func (sw *stoppableWorkersImpl) Done() <-chan struct{} {
	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		sw.activeBackgroundWorkers.Wait()
		close(done)
	})
	return done
}

// Context gets the context the workers are checking on. Using this function is expected to be
// rare: usually you shouldn't need to interact with the context directly.
func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
