package mediaroute

import (
	"context"
	"fmt"
)

// WithProvider manages provider lifecycle with automatic cleanup.
//
// This helper creates a provider, binds it, executes the callback function
// and ensures Unbind and Close run when done.
//
// The callback receives a bound Provider; the connection completes
// asynchronously, so use WithDescriptorCallback to learn when routes are
// available. If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := mediaroute.WithProvider(ctx, component, binder, func(p mediaroute.Provider) error {
//	    c, err := p.CreateRouteController(ctx, "living-room")
//	    if err != nil {
//	        return err
//	    }
//	    return c.Select(ctx)
//	},
//	    mediaroute.WithLogger(log),
//	)
func WithProvider(
	ctx context.Context,
	component ComponentName,
	binder ServiceBinder,
	fn func(Provider) error,
	opts ...Option,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)
	log := loggerOrNop(options)

	p := NewProvider(component, binder, opts...)

	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			log.Warn("failed to close provider", "error", closeErr)
		}
	}()

	if err := p.Bind(ctx); err != nil {
		return fmt.Errorf("failed to bind provider: %w", err)
	}

	return fn(p)
}
