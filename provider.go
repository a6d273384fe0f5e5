package mediaroute

import (
	"context"
)

// Provider is the client of one registered media route provider service.
//
// A Provider binds to the service, registers with it and tracks the routes
// it publishes. It keeps at most one connection; when the service goes
// away the descriptor is cleared and route controllers wait for the next
// connection. All methods are safe for concurrent use.
//
// Lifecycle: Providers are single-use. After Close(), create a new one with NewProvider().
//
// Example usage:
//
//	p := mediaroute.NewProvider(component, binder,
//	    mediaroute.WithLogger(slog.Default()),
//	    mediaroute.WithDescriptorCallback(onDescriptor),
//	)
//	defer p.Close()
//
//	if err := p.Bind(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Provider interface {
	// Bind asks the binder to connect to the service. A failed or
	// rejected bind is not an error; IsBound reports the outcome.
	Bind(ctx context.Context) error

	// Unbind tears down the active connection and releases the binding.
	Unbind(ctx context.Context) error

	// RebindIfDisconnected unbinds and binds again when there is no
	// active connection.
	RebindIfDisconnected(ctx context.Context) error

	// IsBound reports whether a service binding is held.
	IsBound(ctx context.Context) (bool, error)

	// IsConnected reports whether a registered connection is ready.
	IsConnected(ctx context.Context) (bool, error)

	// Descriptor returns the current descriptor, or nil while disconnected.
	Descriptor(ctx context.Context) (*ProviderDescriptor, error)

	// CreateRouteController returns a controller for a route in the
	// current descriptor. Returns ErrRouteNotFound otherwise.
	CreateRouteController(ctx context.Context, routeID string) (RouteController, error)

	// HasComponentName reports whether the provider serves the named component.
	HasComponentName(pkg, class string) bool

	// Close unbinds and stops the provider. Pending control request
	// callbacks are resolved with a failure before Close returns.
	// Must not be called from a provider callback.
	Close() error
}

// RouteController controls one route of a Provider.
//
// While the provider has no ready connection the controller buffers select
// state and volume changes and replays them on the next connection.
type RouteController interface {
	// RouteID returns the id of the controlled route.
	RouteID() string

	// Select selects the route.
	Select(ctx context.Context) error

	// Unselect unselects the route.
	Unselect(ctx context.Context) error

	// SetVolume sets the absolute route volume.
	SetVolume(ctx context.Context, volume int) error

	// UpdateVolume changes the route volume by delta.
	UpdateVolume(ctx context.Context, delta int) error

	// SendControlRequest forwards req to the route. callback, if non-nil,
	// is invoked exactly once when the request was sent. Returns
	// ErrNotAttached or ErrSendFailed when it was not.
	SendControlRequest(ctx context.Context, req *ControlRequest, callback ControlRequestCallback) error

	// Release detaches the controller and forgets it.
	Release(ctx context.Context) error
}

// NewProvider creates a Provider for component. It does not bind.
func NewProvider(component ComponentName, binder ServiceBinder, opts ...Option) Provider {
	return newProviderImpl(component, binder, applyOptions(opts))
}
