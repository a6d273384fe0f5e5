// Package mediaroute is the client side of a registered media route
// provider: it binds to an out-of-process provider service, registers with
// it over a message channel, tracks the routes the service publishes and
// hands out route controllers.
//
// # Basic Usage
//
// Bind to a provider listening on a unix socket and control one of its routes:
//
//	component, _ := mediaroute.ParseComponentName("com.example.cast/.CastProviderService")
//	binder := mediaroute.NewSocketBinder(map[mediaroute.ComponentName]string{
//	    component: "/run/cast/provider.sock",
//	})
//
//	ready := make(chan *mediaroute.ProviderDescriptor, 1)
//
//	err := mediaroute.WithProvider(ctx, component, binder, func(p mediaroute.Provider) error {
//	    d := <-ready
//	    c, err := p.CreateRouteController(ctx, d.Routes[0].ID)
//	    if err != nil {
//	        return err
//	    }
//	    defer c.Release(ctx)
//
//	    if err := c.Select(ctx); err != nil {
//	        return err
//	    }
//
//	    return c.SetVolume(ctx, 7)
//	},
//	    mediaroute.WithLogger(slog.Default()),
//	    mediaroute.WithDescriptorCallback(func(d *mediaroute.ProviderDescriptor) {
//	        if d != nil {
//	            select {
//	            case ready <- d:
//	            default:
//	            }
//	        }
//	    }),
//	)
//
// # Transports
//
// NewSocketBinder dials services listening on unix domain sockets.
// NewProcessBinder launches a service executable per bind and speaks the
// protocol over its stdin and stdout. NewRegistry connects to services
// running in the same process, which is mostly useful in tests.
//
// # Connections
//
// A Provider keeps at most one registered connection to its service. When
// the service dies or disconnects the descriptor is cleared and every route
// controller detaches; controllers buffer select state and volume changes
// while detached and replay them when the next connection becomes ready.
// A registration failure releases the binding entirely; call
// RebindIfDisconnected to recover.
//
// # Callbacks
//
// Descriptor and control request callbacks run on a dedicated goroutine,
// one at a time, and may call back into the Provider. Control request
// callbacks are invoked exactly once for every successfully sent request:
// with the service's result, or with a failure when the connection goes away.
//
// # Error Handling
//
// Typed errors implement MediaRouteError. Use errors.Is with the sentinel
// errors:
//
//	if err := c.SendControlRequest(ctx, req, cb); errors.Is(err, mediaroute.ErrNotAttached) {
//	    // No ready connection; the request was not sent.
//	}
package mediaroute
