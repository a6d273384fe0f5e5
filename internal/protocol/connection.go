package protocol

import (
	stderrors "errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/errors"
	"github.com/wagiedev/mediaroute-go/internal/looper"
)

// Listener receives lifecycle notifications from a Connection.
// Every method is called on the owning loop.
type Listener interface {
	OnConnectionReady(c *Connection)
	OnConnectionDied(c *Connection)
	OnConnectionError(c *Connection, err error)
	OnConnectionDescriptorChanged(c *Connection, d *descriptor.ProviderDescriptor)
}

// Compile-time check that *Connection is a death recipient.
var _ channel.DeathRecipient = (*Connection)(nil)

// Connection is one registered session with a provider service.
type Connection struct {
	log           *slog.Logger
	id            string
	service       channel.Messenger
	loop          looper.Executor
	callbacks     looper.Executor
	listener      Listener
	clientVersion int

	receive          *receiveHandler
	receiveMessenger *channel.HandlerMessenger

	nextRequestID    int
	nextControllerID int
	serviceVersion   int // non-zero once registration completes

	pendingRegisterRequestID int
	pendingCallbacks         map[int]ControlRequestCallback

	disposed bool
}

// NewConnection creates an unregistered connection to service.
//
// loop is the owning loop; inbound replies and death notifications are
// posted onto it. callbacks runs control request callbacks.
func NewConnection(
	log *slog.Logger,
	service channel.Messenger,
	loop looper.Executor,
	callbacks looper.Executor,
	listener Listener,
	clientVersion int,
) *Connection {
	id := ulid.Make().String()

	c := &Connection{
		log:              log.With("component", "connection", "connection_id", id),
		id:               id,
		service:          service,
		loop:             loop,
		callbacks:        callbacks,
		listener:         listener,
		clientVersion:    clientVersion,
		nextRequestID:    1,
		nextControllerID: 1,
		pendingCallbacks: make(map[int]ControlRequestCallback, 4),
	}

	c.receive = newReceiveHandler(c.log, c)
	c.receiveMessenger = channel.NewHandlerMessenger(loop, c.receive.handleMessage)

	return c
}

// ID returns the log correlation id of the connection.
func (c *Connection) ID() string {
	return c.id
}

// ServiceVersion returns the version reported by the service, or 0 while unregistered.
func (c *Connection) ServiceVersion() int {
	return c.serviceVersion
}

// IsRegistered reports whether the registration handshake completed.
func (c *Connection) IsRegistered() bool {
	return c.serviceVersion != 0
}

// PendingCallbacks returns the number of unresolved control requests.
func (c *Connection) PendingCallbacks() int {
	return len(c.pendingCallbacks)
}

// ReceiveMessenger returns the endpoint the service replies to.
func (c *Connection) ReceiveMessenger() channel.Messenger {
	return c.receiveMessenger
}

// Register sends the registration request and links to the service's death.
//
// Returns false if the request could not be sent or the service died
// before the death notification could be installed. In the latter case the
// death path has already been triggered.
func (c *Connection) Register() bool {
	c.pendingRegisterRequestID = c.allocateRequestID()

	if !c.sendRequest(ClientMsgRegister, c.pendingRegisterRequestID, c.clientVersion, nil) {
		return false
	}

	if err := c.service.Binder().LinkToDeath(c); err != nil {
		c.log.Debug("Could not link to service death", "error", err)
		c.BinderDied()

		return false
	}

	c.log.Debug("Registration requested", "request_id", c.pendingRegisterRequestID)

	return true
}

// Dispose ends the session. Every still pending control request is failed
// from a task posted after the dispose, so replies already queued on the
// loop are delivered first. Calling Dispose more than once is a no-op.
func (c *Connection) Dispose() {
	if c.disposed {
		return
	}

	c.disposed = true

	c.sendRequest(ClientMsgUnregister, 0, 0, nil)
	c.receive.dispose()
	c.service.Binder().UnlinkToDeath(c)

	if !c.loop.Post(c.failPendingCallbacks) {
		c.failPendingCallbacks()
	}

	c.log.Debug("Connection disposed")
}

// BinderDied implements channel.DeathRecipient. It may be called on any goroutine.
func (c *Connection) BinderDied() {
	c.loop.Post(func() {
		c.listener.OnConnectionDied(c)
	})
}

// CreateRouteController asks the service for a controller of routeID and
// returns its id on this connection.
func (c *Connection) CreateRouteController(routeID string) int {
	controllerID := c.nextControllerID
	c.nextControllerID++

	c.sendRequest(ClientMsgCreateRouteController, c.allocateRequestID(), controllerID,
		channel.Bundle{ClientDataRouteID: routeID})

	return controllerID
}

// ReleaseRouteController releases a controller created on this connection.
func (c *Connection) ReleaseRouteController(controllerID int) {
	c.sendRequest(ClientMsgReleaseRouteController, c.allocateRequestID(), controllerID, nil)
}

// SelectRoute selects the controller's route.
func (c *Connection) SelectRoute(controllerID int) {
	c.sendRequest(ClientMsgSelectRoute, c.allocateRequestID(), controllerID, nil)
}

// UnselectRoute unselects the controller's route.
func (c *Connection) UnselectRoute(controllerID int) {
	c.sendRequest(ClientMsgUnselectRoute, c.allocateRequestID(), controllerID, nil)
}

// SetVolume sets the absolute volume of the controller's route.
func (c *Connection) SetVolume(controllerID, volume int) {
	c.sendRequest(ClientMsgSetRouteVolume, c.allocateRequestID(), controllerID,
		channel.Bundle{ClientDataVolume: volume})
}

// UpdateVolume adjusts the volume of the controller's route by delta.
func (c *Connection) UpdateVolume(controllerID, delta int) {
	c.sendRequest(ClientMsgUpdateRouteVolume, c.allocateRequestID(), controllerID,
		channel.Bundle{ClientDataVolume: delta})
}

// SendControlRequest forwards req to the controller's route. callback, if
// non-nil, is kept until the service answers or the connection is disposed.
// Returns whether the request was sent.
func (c *Connection) SendControlRequest(
	controllerID int,
	req *channel.ControlRequest,
	callback ControlRequestCallback,
) bool {
	requestID := c.allocateRequestID()

	if !c.sendRequest(ClientMsgRouteControlRequest, requestID, controllerID, req) {
		return false
	}

	if callback != nil {
		c.pendingCallbacks[requestID] = callback
	}

	return true
}

func (c *Connection) onGenericFailure(requestID int) bool {
	if c.pendingRegisterRequestID != 0 && requestID == c.pendingRegisterRequestID {
		c.pendingRegisterRequestID = 0
		c.listener.OnConnectionError(c, &errors.ConnectionError{
			Reason: "Registration failed",
			Err:    errors.ErrRegistrationFailed,
		})
	}

	if callback, ok := c.pendingCallbacks[requestID]; ok {
		delete(c.pendingCallbacks, requestID)
		c.resolve(callback, failedResult)
	}

	return true
}

func (c *Connection) onGenericSuccess(int) bool {
	return true
}

func (c *Connection) onRegistered(requestID, serviceVersion int, data channel.Bundle) bool {
	if c.serviceVersion != 0 ||
		c.pendingRegisterRequestID == 0 ||
		requestID != c.pendingRegisterRequestID ||
		serviceVersion < ServiceVersion1 {
		return false
	}

	d, err := descriptor.FromBundle(data)
	if err != nil {
		c.log.Debug("Dropped invalid routes from registration descriptor", "error", err)
	}

	c.pendingRegisterRequestID = 0
	c.serviceVersion = serviceVersion

	c.log.Info("Registered with service", "service_version", serviceVersion)

	c.listener.OnConnectionDescriptorChanged(c, d)
	c.listener.OnConnectionReady(c)

	return true
}

func (c *Connection) onDescriptorChanged(data channel.Bundle) bool {
	if c.serviceVersion == 0 {
		return false
	}

	d, err := descriptor.FromBundle(data)
	if err != nil {
		c.log.Debug("Dropped invalid routes from descriptor", "error", err)
	}

	c.listener.OnConnectionDescriptorChanged(c, d)

	return true
}

func (c *Connection) onControlRequestResult(requestID, resultCode int, data channel.Bundle) bool {
	callback, ok := c.pendingCallbacks[requestID]
	if !ok {
		return false
	}

	delete(c.pendingCallbacks, requestID)
	c.resolve(callback, ControlResult{Code: resultCode, Data: data})

	return true
}

func (c *Connection) failPendingCallbacks() {
	ids := slices.Sorted(maps.Keys(c.pendingCallbacks))

	for _, id := range ids {
		c.resolve(c.pendingCallbacks[id], failedResult)
	}

	clear(c.pendingCallbacks)
}

func (c *Connection) resolve(callback ControlRequestCallback, result ControlResult) {
	if !c.callbacks.Post(func() { callback(result) }) {
		c.log.Debug("Callback executor stopped, dropping control result", "code", result.Code)
	}
}

func (c *Connection) allocateRequestID() int {
	id := c.nextRequestID
	c.nextRequestID++

	return id
}

func (c *Connection) sendRequest(what, requestID, arg int, payload any) bool {
	msg := &channel.Message{
		What:      what,
		RequestID: requestID,
		Arg:       arg,
		Payload:   payload,
		ReplyTo:   c.receiveMessenger,
	}

	err := c.service.Send(msg)
	if err == nil {
		return true
	}

	if what == ClientMsgUnregister {
		return false
	}

	if stderrors.Is(err, errors.ErrDeadObject) {
		// The service died; the death notification handles teardown.
		c.log.Debug("Service is dead, request not sent", "op", OpName(what), "request_id", requestID)

		return false
	}

	c.log.Error("Could not send message to service", "op", OpName(what), "request_id", requestID, "error", err)

	return false
}
