package binding

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"net"
	"os"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Compile-time check that *SocketOpener implements Opener.
var _ Opener = (*SocketOpener)(nil)

// SocketOpener dials provider services listening on unix domain sockets.
type SocketOpener struct {
	log    *slog.Logger
	paths  map[ComponentName]string
	dialer net.Dialer
}

// NewSocket creates a binder resolving components to unix socket paths.
func NewSocket(log *slog.Logger, limits channel.Limits, paths map[ComponentName]string) *Stream {
	return NewStream(log, limits, NewSocketOpener(log, paths))
}

// NewSocketOpener creates an Opener dialing the socket configured for each component.
func NewSocketOpener(log *slog.Logger, paths map[ComponentName]string) *SocketOpener {
	return &SocketOpener{
		log:   log.With("component", "binding"),
		paths: maps.Clone(paths),
	}
}

// Check implements Opener. A socket the caller may not access is a
// security rejection; a missing one is an unavailable service.
func (o *SocketOpener) Check(name ComponentName) (bool, error) {
	path, ok := o.paths[name]
	if !ok {
		o.log.Debug("No socket configured for service", "service", name.FlattenToShortString())

		return false, nil
	}

	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrPermission) {
			return false, fmt.Errorf("bind %s: %w", name.FlattenToShortString(), errors.ErrSecurity)
		}

		o.log.Debug("Service socket unavailable", "service", name.FlattenToShortString(), "path", path, "error", err)

		return false, nil
	}

	return true, nil
}

// Open implements Opener.
func (o *SocketOpener) Open(ctx context.Context, name ComponentName) (io.ReadWriteCloser, error) {
	path, ok := o.paths[name]
	if !ok {
		return nil, fmt.Errorf("no socket configured for %s", name.FlattenToShortString())
	}

	conn, err := o.dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	return conn, nil
}
