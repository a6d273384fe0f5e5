package looper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Executor accepts tasks for later serial execution.
type Executor interface {
	// Post enqueues fn. It never blocks and returns false once the
	// executor has stopped.
	Post(fn func()) bool
}

// Compile-time check that *Looper implements Executor.
var _ Executor = (*Looper)(nil)

// Looper drains an unbounded FIFO of tasks on a single goroutine.
type Looper struct {
	log  *slog.Logger
	name string

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}

	// Lifecycle management
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a stopped Looper. Call Start before posting work that must run.
func New(log *slog.Logger, name string) *Looper {
	return &Looper{
		log:   log.With("component", "looper", "looper", name),
		name:  name,
		queue: make([]func(), 0, 16),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling Start more than once is a no-op.
func (l *Looper) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(1)

		go l.run()

		l.log.Debug("Looper started")
	})
}

// Stop terminates the loop and waits for the running task to return.
// Tasks still queued are dropped. It's safe to call Stop multiple times,
// but never from inside a task of the same Looper.
func (l *Looper) Stop() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()

		close(l.done)

		if dropped > 0 {
			l.log.Debug("Dropping queued tasks on stop", "count", dropped)
		}
	})

	l.wg.Wait()
}

// Done returns a channel that is closed when the Looper stops.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn for execution on the loop goroutine.
func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()

	if l.stopped {
		l.mu.Unlock()

		return false
	}

	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

// Call runs fn on the loop goroutine and waits for it to return.
//
// Returns ErrLooperStopped if the Looper stops before fn runs, or the context
// error if ctx ends first. In the latter case fn may still run later.
// Call must not be used from inside a task of the same Looper.
func (l *Looper) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	if !l.Post(func() {
		defer close(finished)

		fn()
	}) {
		return errors.ErrLooperStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The task may have completed right before stop.
		select {
		case <-finished:
			return nil
		default:
		}

		return errors.ErrLooperStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every task posted before the call has run.
func (l *Looper) Flush(ctx context.Context) error {
	return l.Call(ctx, func() {})
}

func (l *Looper) run() {
	defer l.wg.Done()
	defer l.log.Debug("Looper stopped")

	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			fn, ok := l.next()
			if !ok {
				break
			}

			fn()

			select {
			case <-l.done:
				return
			default:
			}
		}
	}
}

// next pops the oldest queued task.
func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}

	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return fn, true
}
