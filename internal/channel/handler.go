package channel

import (
	"github.com/wagiedev/mediaroute-go/internal/errors"
	"github.com/wagiedev/mediaroute-go/internal/looper"
)

// Compile-time check that *HandlerMessenger implements Messenger.
var _ Messenger = (*HandlerMessenger)(nil)

// HandlerMessenger is a receive endpoint. Every message sent to it is copied
// and handed to handle on the executor's goroutine.
type HandlerMessenger struct {
	exec   looper.Executor
	handle func(*Message)
	binder *LocalBinder
}

// NewHandlerMessenger creates a live endpoint delivering onto exec.
func NewHandlerMessenger(exec looper.Executor, handle func(*Message)) *HandlerMessenger {
	return &HandlerMessenger{
		exec:   exec,
		handle: handle,
		binder: NewLocalBinder(MessengerInterface),
	}
}

// Send implements Messenger.
func (h *HandlerMessenger) Send(msg *Message) error {
	if !h.binder.IsAlive() {
		return errors.ErrDeadObject
	}

	delivered := msg.Clone()

	if !h.exec.Post(func() { h.handle(delivered) }) {
		h.binder.Kill()

		return errors.ErrDeadObject
	}

	return nil
}

// Binder implements Messenger.
func (h *HandlerMessenger) Binder() Binder {
	return h.binder
}

// Kill makes the endpoint unreachable and notifies linked recipients.
func (h *HandlerMessenger) Kill() {
	h.binder.Kill()
}
