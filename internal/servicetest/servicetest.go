// Package servicetest provides a scriptable media route provider service
// for tests, in the spirit of net/http/httptest.
//
// A Service speaks the service side of the protocol on an in-process
// endpoint (Endpoint) or on a stream (Serve). It answers registration,
// records every request and lets tests push replies and kill itself.
package servicetest

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/looper"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// ControlHandler decides how the service answers a route control request.
// Returning reply=false leaves the request unanswered.
type ControlHandler func(controllerID int, req *channel.ControlRequest) (code int, data channel.Bundle, reply bool)

// Option configures a Service.
type Option func(*Service)

// WithServiceVersion sets the version reported in REGISTERED.
func WithServiceVersion(version int) Option {
	return func(s *Service) {
		s.version = version
	}
}

// WithDescriptor sets the descriptor reported at registration.
func WithDescriptor(d *descriptor.ProviderDescriptor) Option {
	return func(s *Service) {
		s.descriptor = d
	}
}

// WithRegistrationFailure makes the service answer REGISTER with GENERIC_FAILURE.
func WithRegistrationFailure() Option {
	return func(s *Service) {
		s.failRegister = true
	}
}

// WithoutRegistrationReply makes the service never answer REGISTER.
func WithoutRegistrationReply() Option {
	return func(s *Service) {
		s.silentRegister = true
	}
}

// WithControlHandler sets how control requests are answered.
func WithControlHandler(h ControlHandler) Option {
	return func(s *Service) {
		s.control = h
	}
}

// Service is a fake provider service.
type Service struct {
	log      *slog.Logger
	loop     *looper.Looper
	endpoint *channel.HandlerMessenger

	// Set at construction, read on the service loop.
	version        int
	descriptor     *descriptor.ProviderDescriptor
	failRegister   bool
	silentRegister bool
	control        ControlHandler

	mu          sync.Mutex
	requests    []*channel.Message
	clients     []channel.Messenger
	controllers map[int]string
	volumes     map[int]int
}

// New starts a service. Call Close when done.
func New(log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		log:         log.With("component", "servicetest"),
		version:     protocol.ServiceVersion1,
		descriptor:  &descriptor.ProviderDescriptor{},
		controllers: make(map[int]string, 4),
		volumes:     make(map[int]int, 4),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.loop = looper.New(log, "servicetest")
	s.loop.Start()
	s.endpoint = channel.NewHandlerMessenger(s.loop, s.handle)

	return s
}

// Endpoint returns the in-process endpoint clients send requests to.
func (s *Service) Endpoint() channel.Messenger {
	return s.endpoint
}

// Serve answers requests arriving on stream.
func (s *Service) Serve(stream *channel.StreamMessenger) {
	stream.SetReceiver(s.endpoint)
}

// Kill makes the in-process endpoint unreachable, notifying death recipients.
func (s *Service) Kill() {
	s.endpoint.Kill()
}

// Close stops the service loop.
func (s *Service) Close() {
	s.loop.Stop()
}

// Requests returns a copy of every request received so far.
func (s *Service) Requests() []*channel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

// Ops returns the opcodes of every request received so far.
func (s *Service) Ops() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]int, 0, len(s.requests))
	for _, r := range s.requests {
		ops = append(ops, r.What)
	}

	return ops
}

// Clients returns the number of registered clients.
func (s *Service) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Volume returns the last volume applied through controllerID.
func (s *Service) Volume(controllerID int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.volumes[controllerID]

	return v, ok
}

// PublishDescriptor sends DESCRIPTOR_CHANGED to every registered client.
func (s *Service) PublishDescriptor(d *descriptor.ProviderDescriptor) {
	s.Broadcast(&channel.Message{What: protocol.ServiceMsgDescriptorChanged, Payload: d.ToBundle()})
}

// Broadcast sends msg to every registered client.
func (s *Service) Broadcast(msg *channel.Message) {
	s.mu.Lock()
	clients := slices.Clone(s.clients)
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			s.log.Debug("Client unreachable", "error", err)
		}
	}
}

func (s *Service) handle(msg *channel.Message) {
	s.mu.Lock()
	s.requests = append(s.requests, msg)
	s.mu.Unlock()

	switch msg.What {
	case protocol.ClientMsgRegister:
		s.onRegister(msg)

	case protocol.ClientMsgUnregister:
		s.mu.Lock()
		s.clients = slices.DeleteFunc(s.clients, func(c channel.Messenger) bool { return c == msg.ReplyTo })
		s.mu.Unlock()

	case protocol.ClientMsgCreateRouteController:
		s.onCreateRouteController(msg)

	case protocol.ClientMsgReleaseRouteController:
		s.mu.Lock()
		delete(s.controllers, msg.Arg)
		s.mu.Unlock()
		s.reply(msg, protocol.ServiceMsgGenericSuccess, 0, nil)

	case protocol.ClientMsgSelectRoute, protocol.ClientMsgUnselectRoute:
		s.reply(msg, protocol.ServiceMsgGenericSuccess, 0, nil)

	case protocol.ClientMsgSetRouteVolume, protocol.ClientMsgUpdateRouteVolume:
		s.onVolume(msg)

	case protocol.ClientMsgRouteControlRequest:
		s.onControlRequest(msg)

	default:
		s.reply(msg, protocol.ServiceMsgGenericFailure, 0, nil)
	}
}

func (s *Service) onRegister(msg *channel.Message) {
	if s.silentRegister {
		return
	}

	if s.failRegister {
		s.reply(msg, protocol.ServiceMsgGenericFailure, 0, nil)

		return
	}

	if msg.ReplyTo != nil {
		s.mu.Lock()
		s.clients = append(s.clients, msg.ReplyTo)
		s.mu.Unlock()
	}

	s.reply(msg, protocol.ServiceMsgRegistered, s.version, s.descriptor.ToBundle())
}

func (s *Service) onCreateRouteController(msg *channel.Message) {
	data, _ := msg.Payload.(channel.Bundle)
	routeID, _ := data.String(protocol.ClientDataRouteID)

	if _, ok := s.descriptor.Route(routeID); !ok {
		s.reply(msg, protocol.ServiceMsgGenericFailure, 0, nil)

		return
	}

	s.mu.Lock()
	s.controllers[msg.Arg] = routeID
	s.mu.Unlock()

	s.reply(msg, protocol.ServiceMsgGenericSuccess, 0, nil)
}

func (s *Service) onVolume(msg *channel.Message) {
	data, _ := msg.Payload.(channel.Bundle)

	v, ok := data.Int(protocol.ClientDataVolume)
	if !ok {
		s.reply(msg, protocol.ServiceMsgGenericFailure, 0, nil)

		return
	}

	s.mu.Lock()
	if msg.What == protocol.ClientMsgUpdateRouteVolume {
		v += s.volumes[msg.Arg]
	}

	s.volumes[msg.Arg] = v
	s.mu.Unlock()

	s.reply(msg, protocol.ServiceMsgGenericSuccess, 0, nil)
}

func (s *Service) onControlRequest(msg *channel.Message) {
	req, ok := msg.Payload.(*channel.ControlRequest)
	if !ok {
		s.reply(msg, protocol.ServiceMsgGenericFailure, 0, nil)

		return
	}

	if s.control == nil {
		s.reply(msg, protocol.ServiceMsgControlResult, protocol.ResultSucceeded, nil)

		return
	}

	code, data, reply := s.control(msg.Arg, req)
	if !reply {
		return
	}

	var payload any
	if data != nil {
		payload = data
	}

	s.reply(msg, protocol.ServiceMsgControlResult, code, payload)
}

func (s *Service) reply(req *channel.Message, what, arg int, payload any) {
	if req.ReplyTo == nil {
		return
	}

	err := req.ReplyTo.Send(&channel.Message{
		What:      what,
		RequestID: req.RequestID,
		Arg:       arg,
		Payload:   payload,
	})
	if err != nil {
		s.log.Debug("Could not reply to client", "what", what, "error", err)
	}
}
