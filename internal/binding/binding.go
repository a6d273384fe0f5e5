// Package binding implements service binding: resolving a provider
// service component to a live channel.Messenger and reporting when that
// endpoint connects and disconnects.
package binding

import (
	"fmt"
	"strings"

	"github.com/wagiedev/mediaroute-go/internal/channel"
)

// ComponentName identifies a provider service by package and class.
type ComponentName struct {
	Package string
	Class   string
}

// FlattenToShortString renders the name as "package/class", abbreviating a
// class inside the package as ".Class".
func (c ComponentName) FlattenToShortString() string {
	class := c.Class
	if strings.HasPrefix(class, c.Package+".") {
		class = class[len(c.Package):]
	}

	return c.Package + "/" + class
}

func (c ComponentName) String() string {
	return "ComponentInfo{" + c.FlattenToShortString() + "}"
}

// ParseComponentName parses the "package/class" form, expanding a class
// that starts with "." relative to the package.
func ParseComponentName(s string) (ComponentName, error) {
	pkg, class, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || pkg == "" || class == "" {
		return ComponentName{}, fmt.Errorf("invalid component name %q: want package/class", s)
	}

	if strings.HasPrefix(class, ".") {
		class = pkg + class
	}

	return ComponentName{Package: pkg, Class: class}, nil
}

// ServiceConnection receives binding callbacks. Callbacks may arrive on any goroutine.
type ServiceConnection interface {
	// OnServiceConnected delivers the service endpoint. service may be nil
	// or invalid when the service misbehaves.
	OnServiceConnected(name ComponentName, service channel.Messenger)

	// OnServiceDisconnected reports that the endpoint went away. The
	// binding itself remains; the service may connect again later.
	OnServiceDisconnected(name ComponentName)
}

// ServiceBinder establishes and releases bindings to provider services.
type ServiceBinder interface {
	// BindService starts binding conn to the named service. It reports
	// whether a binding was established; a policy rejection returns an
	// error wrapping errors.ErrSecurity.
	BindService(name ComponentName, conn ServiceConnection) (bool, error)

	// UnbindService releases the binding of conn. Callbacks already in
	// flight may still be delivered; no new ones are started.
	UnbindService(conn ServiceConnection)
}

// deathWatcher adapts a function to channel.DeathRecipient.
type deathWatcher struct {
	fn func()
}

func (w *deathWatcher) BinderDied() {
	w.fn()
}
