package responder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Runner executes submitted tasks on their own goroutines. It places no cap
// on concurrency and recovers panics so one task cannot take down another.
type Runner struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Go starts task on a new goroutine and returns immediately.
func (r *Runner) Go(taskID string, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("task panicked",
					zap.String("command_id", taskID),
					zap.String("panic", fmt.Sprint(rec)),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()
		task()
	}()
}

// Wait blocks until every submitted task has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight commands: %w", ctx.Err())
	}
}
