package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/mediaroute-go/internal/binding"
	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/config"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/errors"
	"github.com/wagiedev/mediaroute-go/internal/looper"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// Compile-time checks for the callback adapters.
var (
	_ binding.ServiceConnection = (*serviceConnection)(nil)
	_ protocol.Listener         = (*connectionEvents)(nil)
)

// Provider is the client facade of one provider service component.
type Provider struct {
	log           *slog.Logger
	component     binding.ComponentName
	binder        binding.ServiceBinder
	clientVersion int
	onDescriptor  config.DescriptorCallback
	callTimeout   timeout

	loop     *looper.Looper
	dispatch *looper.Looper

	service *serviceConnection
	events  *connectionEvents

	// Owned by loop.
	bound       bool
	active      *protocol.Connection
	ready       bool
	descriptor  *descriptor.ProviderDescriptor
	controllers []*Controller

	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a provider for component. It does not bind; call Bind.
func New(component binding.ComponentName, binder binding.ServiceBinder, options *config.Options) *Provider {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clientVersion := options.ClientVersion
	if clientVersion == 0 {
		clientVersion = protocol.ClientVersionCurrent
	}

	p := &Provider{
		log:           log.With("component", "provider", "service", component.FlattenToShortString()),
		component:     component,
		binder:        binder,
		clientVersion: clientVersion,
		onDescriptor:  options.DescriptorCallback,
		callTimeout:   newTimeout(options.CallTimeout),
		loop:          looper.New(log, "provider"),
		dispatch:      looper.New(log, "dispatch"),
	}

	p.service = &serviceConnection{p: p}
	p.events = &connectionEvents{p: p}

	p.loop.Start()
	p.dispatch.Start()

	return p
}

func (p *Provider) String() string {
	return "Service connection " + p.component.FlattenToShortString()
}

// HasComponentName reports whether the provider serves the named component.
func (p *Provider) HasComponentName(pkg, class string) bool {
	return p.component.Package == pkg && p.component.Class == class
}

// Bind asks the binder to connect to the service. A failed or rejected bind
// is not an error; IsBound reports the outcome.
func (p *Provider) Bind(ctx context.Context) error {
	return p.call(ctx, p.bind)
}

// Unbind tears down the active connection and releases the binding.
func (p *Provider) Unbind(ctx context.Context) error {
	return p.call(ctx, p.unbind)
}

// RebindIfDisconnected unbinds and binds again when there is no active
// connection. It is the recovery action for a provider that lost its service.
func (p *Provider) RebindIfDisconnected(ctx context.Context) error {
	return p.call(ctx, func() {
		if p.active == nil {
			p.unbind()
			p.bind()
		}
	})
}

// IsBound reports whether a service binding is held.
func (p *Provider) IsBound(ctx context.Context) (bool, error) {
	var bound bool

	err := p.call(ctx, func() { bound = p.bound })

	return bound, err
}

// IsConnected reports whether the active connection completed registration.
func (p *Provider) IsConnected(ctx context.Context) (bool, error) {
	var ready bool

	err := p.call(ctx, func() { ready = p.ready })

	return ready, err
}

// Descriptor returns the current provider descriptor, or nil while disconnected.
func (p *Provider) Descriptor(ctx context.Context) (*descriptor.ProviderDescriptor, error) {
	var d *descriptor.ProviderDescriptor

	err := p.call(ctx, func() { d = p.descriptor })

	return d, err
}

// CreateRouteController returns a controller for routeID, which must be
// present in the current descriptor. The controller attaches to the
// connection as soon as one is ready.
func (p *Provider) CreateRouteController(ctx context.Context, routeID string) (*Controller, error) {
	var c *Controller

	if err := p.call(ctx, func() { c = p.createRouteController(routeID) }); err != nil {
		return nil, err
	}

	if c == nil {
		return nil, fmt.Errorf("create route controller %q: %w", routeID, errors.ErrRouteNotFound)
	}

	return c, nil
}

// Close unbinds and stops the provider. Pending control request callbacks
// are resolved with a failure before Close returns. Close must not be
// called from a provider callback.
func (p *Provider) Close() error {
	var err error

	p.closeOnce.Do(func() {
		ctx, cancel := p.callTimeout.context(context.Background())
		defer cancel()

		var errs []error

		if callErr := p.loop.Call(ctx, p.unbind); callErr != nil {
			errs = append(errs, fmt.Errorf("unbind on close: %w", callErr))
		}

		p.closed.Store(true)

		// The disposal sweep is queued behind unbind.
		if flushErr := p.loop.Flush(ctx); flushErr != nil {
			errs = append(errs, fmt.Errorf("drain provider loop: %w", flushErr))
		}

		p.loop.Stop()

		if flushErr := p.dispatch.Flush(ctx); flushErr != nil {
			errs = append(errs, fmt.Errorf("drain callbacks: %w", flushErr))
		}

		p.dispatch.Stop()

		err = stderrors.Join(errs...)

		p.log.Debug("Provider closed")
	})

	return err
}

// call runs fn on the owning loop.
func (p *Provider) call(ctx context.Context, fn func()) error {
	if p.closed.Load() {
		return errors.ErrProviderClosed
	}

	ctx, cancel := p.callTimeout.context(ctx)
	defer cancel()

	err := p.loop.Call(ctx, fn)
	if stderrors.Is(err, errors.ErrLooperStopped) {
		return errors.ErrProviderClosed
	}

	return err
}

func (p *Provider) bind() {
	if p.bound {
		return
	}

	p.log.Debug("Binding")

	bound, err := p.binder.BindService(p.component, p.service)
	if err != nil {
		// A security rejection is a bind failure like any other.
		p.log.Debug("Bind failed", "error", err)

		return
	}

	p.bound = bound
	if !bound {
		p.log.Debug("Bind failed")
	}
}

func (p *Provider) unbind() {
	p.log.Debug("Unbinding")

	p.disconnect()

	if p.bound {
		p.bound = false
		p.binder.UnbindService(p.service)
	}
}

func (p *Provider) onServiceConnected(service channel.Messenger) {
	p.log.Debug("Connected")

	if !p.bound {
		return
	}

	p.disconnect()

	if !channel.IsValidRemoteMessenger(service) {
		p.log.Error("Service returned invalid messenger binder", "error", errors.ErrInvalidEndpoint)

		return
	}

	conn := protocol.NewConnection(p.log, service, p.loop, p.dispatch, p.events, p.clientVersion)
	if !conn.Register() {
		p.log.Debug("Registration failed", "connection_id", conn.ID())
		conn.Dispose()

		return
	}

	p.active = conn
}

func (p *Provider) onServiceDisconnected() {
	p.log.Debug("Service disconnected")
	p.disconnect()
}

func (p *Provider) onConnectionReady(c *protocol.Connection) {
	if p.active != c {
		return
	}

	p.ready = true

	p.log.Info("Service connection ready", "connection_id", c.ID(), "service_version", c.ServiceVersion())

	for _, controller := range p.controllers {
		controller.attach(c)
	}
}

func (p *Provider) onConnectionDied(c *protocol.Connection) {
	if p.active != c {
		return
	}

	p.log.Info("Service connection died", "connection_id", c.ID())
	p.disconnect()
}

func (p *Provider) onConnectionError(c *protocol.Connection, err error) {
	if p.active != c {
		return
	}

	p.log.Debug("Service connection error", "connection_id", c.ID(), "error", err)
	p.unbind()
}

func (p *Provider) onConnectionDescriptorChanged(c *protocol.Connection, d *descriptor.ProviderDescriptor) {
	if p.active != c {
		return
	}

	p.log.Debug("Descriptor changed", "descriptor", d)
	p.setDescriptor(d)
}

// disconnect tears down the active connection. The descriptor is cleared
// and controllers are detached before the connection is disposed.
func (p *Provider) disconnect() {
	if p.active == nil {
		return
	}

	p.setDescriptor(nil)
	p.ready = false

	for _, controller := range p.controllers {
		controller.detach()
	}

	p.active.Dispose()
	p.active = nil
}

func (p *Provider) setDescriptor(d *descriptor.ProviderDescriptor) {
	if p.descriptor == d {
		return
	}

	p.descriptor = d

	if p.onDescriptor == nil {
		return
	}

	callback := p.onDescriptor
	if !p.dispatch.Post(func() { callback(d) }) {
		p.log.Debug("Dispatcher stopped, dropping descriptor update")
	}
}

func (p *Provider) createRouteController(routeID string) *Controller {
	if p.descriptor == nil {
		return nil
	}

	if _, ok := p.descriptor.Route(routeID); !ok {
		return nil
	}

	c := newController(p, routeID)
	p.controllers = append(p.controllers, c)

	if p.ready {
		c.attach(p.active)
	}

	return c
}

func (p *Provider) onControllerReleased(c *Controller) {
	if i := slices.Index(p.controllers, c); i >= 0 {
		p.controllers = slices.Delete(p.controllers, i, i+1)
	}

	c.detach()
}

// serviceConnection receives binding callbacks on arbitrary goroutines and
// posts them onto the owning loop.
type serviceConnection struct {
	p *Provider
}

func (s *serviceConnection) OnServiceConnected(_ binding.ComponentName, service channel.Messenger) {
	if !s.p.loop.Post(func() { s.p.onServiceConnected(service) }) {
		s.p.log.Debug("Provider stopped, ignoring service connect")
	}
}

func (s *serviceConnection) OnServiceDisconnected(binding.ComponentName) {
	s.p.loop.Post(s.p.onServiceDisconnected)
}

// connectionEvents forwards connection lifecycle events. They already run
// on the owning loop.
type connectionEvents struct {
	p *Provider
}

func (e *connectionEvents) OnConnectionReady(c *protocol.Connection) {
	e.p.onConnectionReady(c)
}

func (e *connectionEvents) OnConnectionDied(c *protocol.Connection) {
	e.p.onConnectionDied(c)
}

func (e *connectionEvents) OnConnectionError(c *protocol.Connection, err error) {
	e.p.onConnectionError(c, err)
}

func (e *connectionEvents) OnConnectionDescriptorChanged(c *protocol.Connection, d *descriptor.ProviderDescriptor) {
	e.p.onConnectionDescriptorChanged(c, d)
}
