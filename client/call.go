package client

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Call is a handle to one in-flight exchange. It does not own the
// exchange: once the exchange completes the handle goes inert.
type Call struct {
	done   chan struct{}
	cancel context.CancelFunc
}

// Cancel aborts the exchange if it is still running. The completion
// callback still fires, carrying the cancellation error unless the
// response had already been read.
func (c *Call) Cancel() {
	select {
	case <-c.done:
	default:
		c.cancel()
	}
}

// Done is closed after the completion callback has returned.
func (c *Call) Done() <-chan struct{} { return c.done }

// inflight tracks the calls started by one transport so they can be
// awaited on shutdown.
type inflight struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// start runs work on its own goroutine and hands the outcome to fn
// exactly once. timeout <= 0 means no per-call deadline.
func (g *inflight) start(parent context.Context, timeout time.Duration, work workFn, fn func(Outcome)) *Call {
	ctx, cancel := context.WithCancel(parent)
	c := &Call{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		go func() {
			defer func() {
				cancel()
				close(c.done)
			}()
			fn(Outcome{Err: ErrClosed})
		}()
		return c
	}

	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			close(c.done)
			g.wg.Done()
		}()

		if timeout > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, timeout)
			defer stop()
		}

		fn(recovered(ctx, work))
	}()

	return c
}

// recovered runs work, turning a panic into an Outcome carrying ErrPanic.
func recovered(ctx context.Context, work workFn) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			trace := debug.Stack()
			out = Outcome{Err: fmt.Errorf("%w [%v] TRACE[%s]", ErrPanic, rec, string(trace))}
		}
	}()

	return work(ctx)
}

// wait blocks until every started call has delivered its outcome.
func (g *inflight) wait() {
	g.wg.Wait()
}

// close rejects new calls and waits for the running ones.
func (g *inflight) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()
}
