// Package poll watches eventually-consistent server-side state by re-running a
// check on a fixed interval until it succeeds, fails, times out or is stopped.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultInterval = time.Second
	DefaultTimeout  = 2 * time.Minute
)

// Check reports whether the awaited condition holds.
type Check func(ctx context.Context) (bool, error)

// Options configures a loop. Zero values fall back to the defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// TimeoutError is passed to onError when a loop outlives its timeout.
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll timed out after %s (limit %s)", e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Run drives one loop on the calling goroutine. Exactly one of onComplete or
// onError is invoked unless ctx is cancelled first, in which case neither is.
// A new check is only started after the previous one has returned.
func Run(ctx context.Context, check Check, onComplete func(), onError func(error), opts Options) {
	opts = opts.withDefaults()
	clock := opts.Clock

	var start time.Time
	for tick := 0; ; tick++ {
		if ctx.Err() != nil {
			return
		}
		if tick == 0 {
			start = clock.Now()
		} else if elapsed := clock.Since(start); elapsed > opts.Timeout {
			onError(&TimeoutError{Timeout: opts.Timeout, Elapsed: elapsed})
			return
		}

		done, err := check(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			onError(err)
			return
		}
		if done {
			onComplete()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-clock.After(opts.Interval):
		}
	}
}

// Handle is the cancellation handle of a loop started in the background.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func start(ctx context.Context, fn func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		fn(ctx)
	}()
	return h
}

// Start runs a loop on its own goroutine. See Run for the callback contract.
func Start(ctx context.Context, check Check, onComplete func(), onError func(error), opts Options) *Handle {
	return start(ctx, func(ctx context.Context) {
		Run(ctx, check, onComplete, onError, opts)
	})
}

// Stop cancels the loop and waits until its goroutine has returned. It is
// safe to call more than once and from any goroutine other than the loop's.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}

// closedCh stands in for the done channel of a nil Handle.
var closedCh = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done is closed once the loop has finished for any reason. A nil Handle
// never ran, so its channel is already closed.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return closedCh
	}
	return h.done
}

// Running reports whether the loop goroutine is still alive.
func (h *Handle) Running() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
