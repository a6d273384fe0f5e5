// Package config holds provider client options and the TOML file format
// used by the command line tools.
package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
)

// DefaultCallTimeout bounds how long a public call waits for the owning loop.
const DefaultCallTimeout = 5 * time.Second

// DescriptorCallback receives every descriptor change, including the clear
// to nil on disconnect. It runs on the callback dispatcher.
type DescriptorCallback func(d *descriptor.ProviderDescriptor)

// Options configures a media route provider client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ClientVersion is sent with REGISTER. Zero means the current version.
	ClientVersion int

	// DescriptorCallback is notified when the provider descriptor changes.
	DescriptorCallback DescriptorCallback

	// CallTimeout bounds how long a public call waits for the owning loop
	// when the caller's context has no deadline. Zero means DefaultCallTimeout.
	// It is not a request timeout; remote replies are never timed out.
	CallTimeout time.Duration

	// Limits constrains stream framing for socket bindings.
	Limits channel.Limits
}
