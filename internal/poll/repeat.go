package poll

import (
	"context"
)

// Refresh re-fetches state. It has no completion condition.
type Refresh func(ctx context.Context) error

// RunRepeat calls refresh immediately and then every opts.Interval until ctx
// is cancelled. Timeout is ignored. A failed refresh is reported to onError
// and the loop carries on with the next tick.
func RunRepeat(ctx context.Context, refresh Refresh, onError func(error), opts Options) {
	opts = opts.withDefaults()
	for {
		if ctx.Err() != nil {
			return
		}
		if err := refresh(ctx); err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-opts.Clock.After(opts.Interval):
		}
	}
}

// Repeat runs RunRepeat on its own goroutine.
func Repeat(ctx context.Context, refresh Refresh, onError func(error), opts Options) *Handle {
	return start(ctx, func(ctx context.Context) {
		RunRepeat(ctx, refresh, onError, opts)
	})
}
