package channel

import (
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Compile-time check that *LocalBinder implements Binder.
var _ Binder = (*LocalBinder)(nil)

// LocalBinder is an in-process Binder. Kill marks it dead and notifies
// every linked recipient from a new goroutine.
type LocalBinder struct {
	descriptor string

	mu         sync.Mutex
	alive      bool
	recipients []DeathRecipient
}

// NewLocalBinder creates a live binder reporting descriptor.
func NewLocalBinder(descriptor string) *LocalBinder {
	return &LocalBinder{
		descriptor: descriptor,
		alive:      true,
	}
}

// InterfaceDescriptor implements Binder.
func (b *LocalBinder) InterfaceDescriptor() string {
	return b.descriptor
}

// IsAlive implements Binder.
func (b *LocalBinder) IsAlive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.alive
}

// LinkToDeath implements Binder.
func (b *LocalBinder) LinkToDeath(r DeathRecipient) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.alive {
		return errors.ErrDeadObject
	}

	b.recipients = append(b.recipients, r)

	return nil
}

// UnlinkToDeath implements Binder.
func (b *LocalBinder) UnlinkToDeath(r DeathRecipient) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.recipients {
		if existing == r {
			b.recipients = append(b.recipients[:i], b.recipients[i+1:]...)

			return true
		}
	}

	return false
}

// Kill marks the binder dead. It reports whether this call caused the transition.
func (b *LocalBinder) Kill() bool {
	b.mu.Lock()

	if !b.alive {
		b.mu.Unlock()

		return false
	}

	b.alive = false
	recipients := b.recipients
	b.recipients = nil
	b.mu.Unlock()

	if len(recipients) > 0 {
		go func() {
			for _, r := range recipients {
				r.BinderDied()
			}
		}()
	}

	return true
}
