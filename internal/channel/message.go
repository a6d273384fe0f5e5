package channel

import (
	"encoding/json"
	"maps"
	"math"
)

// MessengerInterface is the interface descriptor every valid messenger binder reports.
const MessengerInterface = "mediaroute.IMessenger"

// Message is one unit of IPC between client and service.
type Message struct {
	// What is the operation code.
	What int

	// RequestID correlates a reply with the request that caused it.
	RequestID int

	// Arg is an operation specific integer argument.
	Arg int

	// Payload is nil, a Bundle or a *ControlRequest.
	Payload any

	// ReplyTo is where the receiver should send replies, if anywhere.
	ReplyTo Messenger
}

// Clone returns a shallow copy of the message with a copied Bundle payload.
func (m *Message) Clone() *Message {
	c := *m

	if b, ok := m.Payload.(Bundle); ok {
		c.Payload = maps.Clone(b)
	}

	return &c
}

// Messenger sends messages to an endpoint, possibly in another process.
type Messenger interface {
	// Send delivers msg asynchronously. It fails with ErrDeadObject when the
	// endpoint is unreachable.
	Send(msg *Message) error

	// Binder returns the liveness handle of the endpoint.
	Binder() Binder
}

// Binder reports liveness of a remote endpoint and delivers death notifications.
type Binder interface {
	// InterfaceDescriptor names the interface implemented by the endpoint.
	InterfaceDescriptor() string

	// IsAlive reports whether the endpoint is still reachable.
	IsAlive() bool

	// LinkToDeath registers r to be notified when the endpoint dies.
	// Linking to an already dead endpoint fails with ErrDeadObject.
	LinkToDeath(r DeathRecipient) error

	// UnlinkToDeath removes r and reports whether it was registered.
	UnlinkToDeath(r DeathRecipient) bool
}

// DeathRecipient is notified when a linked endpoint dies.
// BinderDied is called on an arbitrary goroutine.
type DeathRecipient interface {
	BinderDied()
}

// IsValidRemoteMessenger reports whether m can be used as a service endpoint.
func IsValidRemoteMessenger(m Messenger) bool {
	if m == nil {
		return false
	}

	b := m.Binder()

	return b != nil && b.InterfaceDescriptor() == MessengerInterface
}

// Bundle is a string keyed payload of JSON compatible values.
type Bundle map[string]any

// String returns the string stored under key.
func (b Bundle) String(key string) (string, bool) {
	s, ok := b[key].(string)

	return s, ok
}

// Int returns the integer stored under key. Whole floating point and
// json.Number values are accepted since decoded payloads carry those.
func (b Bundle) Int(key string) (int, bool) {
	switch v := b[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}

		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}

// Bool returns the bool stored under key.
func (b Bundle) Bool(key string) (bool, bool) {
	v, ok := b[key].(bool)

	return v, ok
}

// ControlRequest is the opaque control intent forwarded to a route.
type ControlRequest struct {
	Action     string   `json:"action"`
	Categories []string `json:"categories,omitempty"`
	Extras     Bundle   `json:"extras,omitempty"`
}

// HasCategory reports whether the request carries category.
func (r *ControlRequest) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}

	return false
}
