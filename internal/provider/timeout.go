package provider

import (
	"context"
	"time"

	"github.com/wagiedev/mediaroute-go/internal/config"
)

// timeout bounds waits on the owning loop for callers without a deadline.
type timeout time.Duration

func newTimeout(d time.Duration) timeout {
	if d <= 0 {
		d = config.DefaultCallTimeout
	}

	return timeout(d)
}

func (t timeout) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, time.Duration(t))
}
