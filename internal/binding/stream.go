package binding

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/channel"
)

// Compile-time check that *Stream implements ServiceBinder.
var _ ServiceBinder = (*Stream)(nil)

// Opener connects to provider services over byte streams.
type Opener interface {
	// Check reports whether name can be bound. It returns false for an
	// unknown or unavailable service and an error wrapping
	// errors.ErrSecurity when policy forbids the bind.
	Check(name ComponentName) (bool, error)

	// Open connects to the service. ctx is cancelled when the binding is
	// released; the stream is closed then too.
	Open(ctx context.Context, name ComponentName) (io.ReadWriteCloser, error)
}

// Stream binds to provider services reachable through an Opener. Each
// binding opens one stream and wraps it in a channel.StreamMessenger; when
// the stream dies the connection is told the service disconnected.
type Stream struct {
	log    *slog.Logger
	limits channel.Limits
	opener Opener

	mu       sync.Mutex
	bindings map[ServiceConnection]*streamBinding
}

type streamBinding struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	active bool
	stream *channel.StreamMessenger
}

// NewStream creates a binder opening streams through opener.
func NewStream(log *slog.Logger, limits channel.Limits, opener Opener) *Stream {
	return &Stream{
		log:      log.With("component", "binding"),
		limits:   limits,
		opener:   opener,
		bindings: make(map[ServiceConnection]*streamBinding, 2),
	}
}

// BindService implements ServiceBinder.
func (s *Stream) BindService(name ComponentName, conn ServiceConnection) (bool, error) {
	ok, err := s.opener.Check(name)
	if err != nil || !ok {
		return false, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &streamBinding{cancel: cancel, active: true}

	s.mu.Lock()
	s.bindings[conn] = b
	s.mu.Unlock()

	go s.connect(ctx, b, name, conn)

	return true, nil
}

// UnbindService implements ServiceBinder.
func (s *Stream) UnbindService(conn ServiceConnection) {
	s.mu.Lock()
	b, ok := s.bindings[conn]
	delete(s.bindings, conn)
	s.mu.Unlock()

	if !ok {
		return
	}

	b.cancel()

	b.mu.Lock()
	b.active = false
	stream := b.stream
	b.stream = nil
	b.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}

func (s *Stream) connect(ctx context.Context, b *streamBinding, name ComponentName, conn ServiceConnection) {
	rwc, err := s.opener.Open(ctx, name)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug("Could not open service stream", "service", name.FlattenToShortString(), "error", err)
		}

		return
	}

	stream := channel.NewStreamMessenger(s.log, rwc, s.limits)

	b.mu.Lock()

	if !b.active {
		b.mu.Unlock()
		_ = stream.Close()

		return
	}

	b.stream = stream
	b.mu.Unlock()

	watcher := &deathWatcher{fn: func() {
		b.mu.Lock()
		current := b.active && b.stream == stream
		if current {
			b.stream = nil
		}
		b.mu.Unlock()

		if !current {
			return
		}

		conn.OnServiceDisconnected(name)

		// Frees the socket or reaps the exited process before any unbind.
		_ = stream.Close()
	}}

	if err := stream.Binder().LinkToDeath(watcher); err != nil {
		s.log.Debug("Service stream closed before connecting", "service", name.FlattenToShortString())

		b.mu.Lock()
		if b.stream == stream {
			b.stream = nil
		}
		b.mu.Unlock()

		_ = stream.Close()

		return
	}

	s.log.Info("Service stream connected", "service", name.FlattenToShortString())

	conn.OnServiceConnected(name, stream)
}
