package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/wagiedev/mediaroute-go/internal/binding"
	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Compile-time check that *Launcher implements binding.Opener.
var _ binding.Opener = (*Launcher)(nil)

// Launcher starts a fresh service process for every bind.
type Launcher struct {
	log        *slog.Logger
	services   map[binding.ComponentName]Service
	searchDirs []string
}

// NewLauncher creates a Launcher for the configured services.
func NewLauncher(log *slog.Logger, services map[binding.ComponentName]Service) *Launcher {
	return &Launcher{
		log:        log.With("component", "subprocess"),
		services:   maps.Clone(services),
		searchDirs: defaultSearchDirs(),
	}
}

// Check implements binding.Opener.
func (l *Launcher) Check(name binding.ComponentName) (bool, error) {
	svc, ok := l.services[name]
	if !ok {
		l.log.Debug("No executable configured for service", "service", name.FlattenToShortString())

		return false, nil
	}

	if _, err := findExecutable(l.log, svc.Executable, l.searchDirs); err != nil {
		if stderrors.Is(err, errors.ErrSecurity) {
			return false, fmt.Errorf("bind %s: %w", name.FlattenToShortString(), err)
		}

		l.log.Debug("Service executable unavailable", "service", name.FlattenToShortString(), "error", err)

		return false, nil
	}

	return true, nil
}

// Open implements binding.Opener.
func (l *Launcher) Open(ctx context.Context, name binding.ComponentName) (io.ReadWriteCloser, error) {
	svc, ok := l.services[name]
	if !ok {
		return nil, fmt.Errorf("no executable configured for %s", name.FlattenToShortString())
	}

	path, err := findExecutable(l.log, svc.Executable, l.searchDirs)
	if err != nil {
		return nil, err
	}

	p, err := Start(ctx, l.log, path, svc)
	if err != nil {
		return nil, err
	}

	return p, nil
}
