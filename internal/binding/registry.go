package binding

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Compile-time check that *Registry implements ServiceBinder.
var _ ServiceBinder = (*Registry)(nil)

// ServiceFactory starts (or reuses) a service and returns its endpoint.
type ServiceFactory func() (channel.Messenger, error)

// Registry is an in-process ServiceBinder resolving components to factories.
type Registry struct {
	log *slog.Logger

	mu       sync.Mutex
	services map[ComponentName]ServiceFactory
	denied   map[ComponentName]bool
	bindings map[ServiceConnection]*registryBinding
}

type registryBinding struct {
	name ComponentName
	conn ServiceConnection

	mu      sync.Mutex
	active  bool
	service channel.Messenger
	watcher *deathWatcher
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log.With("component", "binding"),
		services: make(map[ComponentName]ServiceFactory, 4),
		denied:   make(map[ComponentName]bool, 1),
		bindings: make(map[ServiceConnection]*registryBinding, 4),
	}
}

// Register makes a service available under name.
func (r *Registry) Register(name ComponentName, factory ServiceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[name] = factory
}

// Deny makes every future bind to name fail the security policy.
func (r *Registry) Deny(name ComponentName) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.denied[name] = true
}

// BindService implements ServiceBinder. The connection callback is
// delivered from a new goroutine.
func (r *Registry) BindService(name ComponentName, conn ServiceConnection) (bool, error) {
	r.mu.Lock()

	if r.denied[name] {
		r.mu.Unlock()

		return false, fmt.Errorf("bind %s: %w", name.FlattenToShortString(), errors.ErrSecurity)
	}

	factory, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		r.log.Debug("No such service", "service", name.FlattenToShortString())

		return false, nil
	}

	b := &registryBinding{name: name, conn: conn, active: true}
	r.bindings[conn] = b
	r.mu.Unlock()

	go b.connect(r.log, factory)

	return true, nil
}

// UnbindService implements ServiceBinder.
func (r *Registry) UnbindService(conn ServiceConnection) {
	r.mu.Lock()
	b, ok := r.bindings[conn]
	delete(r.bindings, conn)
	r.mu.Unlock()

	if ok {
		b.deactivate()
	}
}

// Reconnect delivers a fresh endpoint to every active binding of name, as
// happens when a crashed service is restarted.
func (r *Registry) Reconnect(name ComponentName) {
	r.mu.Lock()

	factory := r.services[name]

	var targets []*registryBinding

	for _, b := range r.bindings {
		if b.name == name {
			targets = append(targets, b)
		}
	}

	r.mu.Unlock()

	for _, b := range targets {
		go b.connect(r.log, factory)
	}
}

// Bound reports whether conn currently holds a binding.
func (r *Registry) Bound(conn ServiceConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.bindings[conn]

	return ok
}

func (b *registryBinding) connect(log *slog.Logger, factory ServiceFactory) {
	if factory == nil {
		return
	}

	service, err := factory()
	if err != nil {
		log.Debug("Service failed to start", "service", b.name.FlattenToShortString(), "error", err)

		return
	}

	watcher := &deathWatcher{}
	watcher.fn = func() { b.died(watcher) }

	b.mu.Lock()

	if !b.active {
		b.mu.Unlock()

		return
	}

	b.unwatchLocked()
	b.service = service
	b.watcher = watcher

	if service != nil && service.Binder() != nil {
		if err := service.Binder().LinkToDeath(watcher); err != nil {
			log.Debug("Service died before connecting", "service", b.name.FlattenToShortString())
		}
	}

	b.mu.Unlock()

	b.conn.OnServiceConnected(b.name, service)
}

func (b *registryBinding) died(watcher *deathWatcher) {
	b.mu.Lock()
	current := b.active && b.watcher == watcher
	b.mu.Unlock()

	if current {
		b.conn.OnServiceDisconnected(b.name)
	}
}

func (b *registryBinding) deactivate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active = false
	b.unwatchLocked()
}

func (b *registryBinding) unwatchLocked() {
	if b.service != nil && b.service.Binder() != nil && b.watcher != nil {
		b.service.Binder().UnlinkToDeath(b.watcher)
	}

	b.service = nil
	b.watcher = nil
}
