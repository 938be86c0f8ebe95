package runner

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when Runner's Run method fails due to a timeout event.
var ErrTimeout = errors.New("runner received timeout")

// Runnable is the interface that wraps the basic Run method.
//
// Run should be implemented by any task intended to be executed by the Runner.
type Runnable interface {
	Run(ctx context.Context) error
}

// The RunnableFunc type is an adapter to allow the use of ordinary functions as Runnable tasks.
// If f is a function with the appropriate signature, RunnableFunc(f) is a Runnable that calls f.
type RunnableFunc func(ctx context.Context) error

// Run calls f()
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Runner is the interface that wraps the basic Run method.
//
// Run executes submitted Runnable tasks.
type Runner interface {
	Run(ctx context.Context, task Runnable) error
}

// New constructs a Runner that waits for the task as long as ctx allows.
func New() Runner {
	return &runner{}
}

// NewWithTimeout constructs a Runner that gives up on a task after d. The
// task's context is cancelled at the same time so it can release resources.
// A non-positive d disables the timeout.
func NewWithTimeout(d time.Duration) Runner {
	return &runner{timeout: d}
}

type runner struct {
	timeout time.Duration
}

// Run runs the task and waits for it to complete, for the timeout to expire
// or for ctx to be done, whichever happens first.
func (r *runner) Run(ctx context.Context, task Runnable) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timeout <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	complete := make(chan error, 1)
	go func() {
		complete <- task.Run(taskCtx)
	}()

	select {
	case err := <-complete:
		return err
	case <-timeout:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
