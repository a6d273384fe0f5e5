package channel

import (
	stderrors "errors"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// Compile-time check that *StreamMessenger implements Messenger.
var _ Messenger = (*StreamMessenger)(nil)

// StreamMessenger is a Messenger over a byte stream such as a unix socket.
//
// Outbound messages are framed and written to the stream. The ReplyTo of an
// outbound message becomes the receiver of inbound frames; SetReceiver sets
// it explicitly on the serving side. Inbound messages carry the
// StreamMessenger itself as ReplyTo so replies travel back over the stream.
// When the stream fails or reaches EOF the binder dies and linked death
// recipients are notified.
type StreamMessenger struct {
	log    *slog.Logger
	rwc    io.ReadWriteCloser
	limits Limits
	binder *LocalBinder

	writeMu sync.Mutex

	recvMu   sync.RWMutex
	receiver Messenger

	eg        errgroup.Group
	closeOnce sync.Once
	closing   chan struct{}
}

// NewStreamMessenger wraps rwc and starts reading from it.
func NewStreamMessenger(log *slog.Logger, rwc io.ReadWriteCloser, limits Limits) *StreamMessenger {
	s := &StreamMessenger{
		log:     log.With("component", "stream"),
		rwc:     rwc,
		limits:  limits,
		binder:  NewLocalBinder(MessengerInterface),
		closing: make(chan struct{}),
	}

	s.eg.Go(s.readLoop)

	return s
}

// Send implements Messenger.
func (s *StreamMessenger) Send(msg *Message) error {
	if !s.binder.IsAlive() {
		return errors.ErrDeadObject
	}

	if msg.ReplyTo != nil && msg.ReplyTo != Messenger(s) {
		s.SetReceiver(msg.ReplyTo)
	}

	f, err := EncodeMessage(msg)
	if err != nil {
		return &errors.TransportError{Op: "encode", Err: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := WriteFrame(s.rwc, f, s.limits); err != nil {
		if stderrors.Is(err, errors.ErrPayloadTooLarge) {
			return &errors.TransportError{Op: "send", Err: err}
		}

		s.log.Debug("Stream write failed", "error", err)
		s.binder.Kill()

		return &errors.TransportError{Op: "send", Err: stderrors.Join(errors.ErrDeadObject, err)}
	}

	return nil
}

// Binder implements Messenger.
func (s *StreamMessenger) Binder() Binder {
	return s.binder
}

// SetReceiver sets the endpoint inbound messages are delivered to.
func (s *StreamMessenger) SetReceiver(m Messenger) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	s.receiver = m
}

// Close closes the stream and waits for the reader to stop.
// It's safe to call Close multiple times.
func (s *StreamMessenger) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.rwc.Close()
		s.binder.Kill()
	})

	_ = s.eg.Wait()

	return err
}

func (s *StreamMessenger) readLoop() error {
	defer s.binder.Kill()
	defer s.log.Debug("Stream read loop stopped")

	count := 0

	for {
		f, err := ReadFrame(s.rwc, s.limits)
		if err != nil {
			select {
			case <-s.closing:
			default:
				if !stderrors.Is(err, io.EOF) {
					s.log.Debug("Stream read failed", "error", err)
				}
			}

			return nil
		}

		msg, err := DecodeMessage(f)
		if err != nil {
			s.log.Debug("Dropping undecodable frame", "error", err, "what", f.Header.What)

			continue
		}

		count++
		msg.ReplyTo = s

		s.recvMu.RLock()
		receiver := s.receiver
		s.recvMu.RUnlock()

		if receiver == nil {
			s.log.Debug("Dropping frame with no receiver", "what", msg.What, "message_count", count)

			continue
		}

		if err := receiver.Send(msg); err != nil {
			s.log.Debug("Receiver rejected frame", "what", msg.What, "error", err)
		}
	}
}
