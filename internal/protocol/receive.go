package protocol

import (
	"fmt"
	"log/slog"
	"weak"

	"github.com/wagiedev/mediaroute-go/internal/channel"
)

// receiveHandler dispatches replies from the service to its connection.
//
// It only holds a weak reference so a service that keeps the client's reply
// messenger alive cannot keep the connection alive. The reference is cleared
// on dispose, after which every delivery is dropped.
type receiveHandler struct {
	log  *slog.Logger
	conn weak.Pointer[Connection]
}

func newReceiveHandler(log *slog.Logger, c *Connection) *receiveHandler {
	return &receiveHandler{
		log:  log,
		conn: weak.Make(c),
	}
}

func (h *receiveHandler) dispose() {
	h.conn = weak.Pointer[Connection]{}
}

func (h *receiveHandler) handleMessage(msg *channel.Message) {
	if !h.processMessage(msg) {
		h.log.Debug("Unhandled message from service",
			"what", msg.What,
			"request_id", msg.RequestID,
			"arg", msg.Arg,
			"payload_type", fmt.Sprintf("%T", msg.Payload),
		)
	}
}

func (h *receiveHandler) processMessage(msg *channel.Message) bool {
	c := h.conn.Value()
	if c == nil {
		return false
	}

	switch msg.What {
	case ServiceMsgGenericFailure:
		return c.onGenericFailure(msg.RequestID)

	case ServiceMsgGenericSuccess:
		return c.onGenericSuccess(msg.RequestID)

	case ServiceMsgRegistered:
		if data, ok := msg.Payload.(channel.Bundle); ok {
			return c.onRegistered(msg.RequestID, msg.Arg, data)
		}

	case ServiceMsgDescriptorChanged:
		if data, ok := msg.Payload.(channel.Bundle); ok {
			return c.onDescriptorChanged(data)
		}

	case ServiceMsgControlResult:
		if msg.Payload == nil {
			return c.onControlRequestResult(msg.RequestID, msg.Arg, nil)
		}

		if data, ok := msg.Payload.(channel.Bundle); ok {
			return c.onControlRequestResult(msg.RequestID, msg.Arg, data)
		}
	}

	return false
}
