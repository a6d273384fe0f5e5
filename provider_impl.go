package mediaroute

import (
	"context"

	"github.com/wagiedev/mediaroute-go/internal/provider"
)

// providerWrapper wraps the internal provider to adapt it to the public interface.
type providerWrapper struct {
	*provider.Provider
}

// Compile-time checks that the wrappers implement the public interfaces.
var (
	_ Provider        = (*providerWrapper)(nil)
	_ RouteController = (*provider.Controller)(nil)
)

// newProviderImpl creates the internal provider implementation.
func newProviderImpl(component ComponentName, binder ServiceBinder, options *Options) Provider {
	return &providerWrapper{Provider: provider.New(component, binder, options)}
}

// CreateRouteController returns a controller for a route in the current descriptor.
func (p *providerWrapper) CreateRouteController(ctx context.Context, routeID string) (RouteController, error) {
	c, err := p.Provider.CreateRouteController(ctx, routeID)
	if err != nil {
		return nil, err
	}

	return c, nil
}
