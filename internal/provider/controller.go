package provider

import (
	"context"
	"fmt"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/errors"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// noPendingVolume marks that no absolute volume is buffered.
const noPendingVolume = -1

// Controller is a handle on one route of the provider.
//
// While the provider has no ready connection the controller is detached:
// select state and volume changes are buffered and replayed when it
// attaches to the next connection. A pending absolute volume clears any
// pending delta, but deltas buffered after it still accumulate.
type Controller struct {
	p       *Provider
	routeID string

	// Owned by the provider loop.
	selected                 bool
	pendingSetVolume         int
	pendingUpdateVolumeDelta int
	conn                     *protocol.Connection
	controllerID             int
}

func newController(p *Provider, routeID string) *Controller {
	return &Controller{
		p:                p,
		routeID:          routeID,
		pendingSetVolume: noPendingVolume,
	}
}

// RouteID returns the id of the controlled route.
func (c *Controller) RouteID() string {
	return c.routeID
}

// Select selects the route.
func (c *Controller) Select(ctx context.Context) error {
	return c.p.call(ctx, c.selectRoute)
}

// Unselect unselects the route.
func (c *Controller) Unselect(ctx context.Context) error {
	return c.p.call(ctx, c.unselectRoute)
}

// SetVolume sets the absolute route volume.
func (c *Controller) SetVolume(ctx context.Context, volume int) error {
	return c.p.call(ctx, func() { c.setVolume(volume) })
}

// UpdateVolume changes the route volume by delta.
func (c *Controller) UpdateVolume(ctx context.Context, delta int) error {
	return c.p.call(ctx, func() { c.updateVolume(delta) })
}

// SendControlRequest forwards req to the route. On success callback, if
// non-nil, is invoked exactly once with the result. On error callback is
// never invoked and the request must be assumed undelivered.
//
// Returns ErrNotAttached when the provider has no ready connection and
// ErrSendFailed when the service could not be reached.
func (c *Controller) SendControlRequest(
	ctx context.Context,
	req *channel.ControlRequest,
	callback protocol.ControlRequestCallback,
) error {
	var sendErr error

	err := c.p.call(ctx, func() { sendErr = c.sendControlRequest(req, callback) })
	if err != nil {
		return err
	}

	if sendErr != nil {
		return fmt.Errorf("control request on route %q: %w", c.routeID, sendErr)
	}

	return nil
}

// Release detaches the controller and forgets it. Calling Release more
// than once is a no-op.
func (c *Controller) Release(ctx context.Context) error {
	return c.p.call(ctx, func() { c.p.onControllerReleased(c) })
}

// attach binds the controller to conn and replays buffered state.
func (c *Controller) attach(conn *protocol.Connection) {
	c.conn = conn
	c.controllerID = conn.CreateRouteController(c.routeID)

	if c.selected {
		conn.SelectRoute(c.controllerID)
	}

	if c.pendingSetVolume >= 0 {
		conn.SetVolume(c.controllerID, c.pendingSetVolume)
		c.pendingSetVolume = noPendingVolume
	}

	if c.pendingUpdateVolumeDelta != 0 {
		conn.UpdateVolume(c.controllerID, c.pendingUpdateVolumeDelta)
		c.pendingUpdateVolumeDelta = 0
	}
}

func (c *Controller) detach() {
	if c.conn == nil {
		return
	}

	c.conn.ReleaseRouteController(c.controllerID)
	c.conn = nil
	c.controllerID = 0
}

func (c *Controller) selectRoute() {
	c.selected = true

	if c.conn != nil {
		c.conn.SelectRoute(c.controllerID)
	}
}

func (c *Controller) unselectRoute() {
	c.selected = false

	if c.conn != nil {
		c.conn.UnselectRoute(c.controllerID)
	}
}

func (c *Controller) setVolume(volume int) {
	if c.conn != nil {
		c.conn.SetVolume(c.controllerID, volume)

		return
	}

	c.pendingSetVolume = volume
	c.pendingUpdateVolumeDelta = 0
}

func (c *Controller) updateVolume(delta int) {
	if c.conn != nil {
		c.conn.UpdateVolume(c.controllerID, delta)

		return
	}

	c.pendingUpdateVolumeDelta += delta
}

func (c *Controller) sendControlRequest(req *channel.ControlRequest, callback protocol.ControlRequestCallback) error {
	if c.conn == nil {
		return errors.ErrNotAttached
	}

	if !c.conn.SendControlRequest(c.controllerID, req, callback) {
		return errors.ErrSendFailed
	}

	return nil
}
