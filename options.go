package mediaroute

import (
	"log/slog"
	"time"

	"github.com/wagiedev/mediaroute-go/internal/config"
)

// Options configures a Provider, a binder or route tools.
type Options = config.Options

// DescriptorCallback receives every descriptor change, including nil when
// the provider disconnects.
type DescriptorCallback = config.DescriptorCallback

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClientVersion sets the protocol version sent at registration.
func WithClientVersion(version int) Option {
	return func(o *Options) {
		o.ClientVersion = version
	}
}

// WithDescriptorCallback sets the callback notified of descriptor changes.
// It runs on the callback goroutine and may call back into the Provider.
func WithDescriptorCallback(fn DescriptorCallback) Option {
	return func(o *Options) {
		o.DescriptorCallback = fn
	}
}

// WithCallTimeout bounds how long a Provider call waits for the provider's
// event loop when its context has no deadline. It does not time out
// requests to the service.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CallTimeout = d
	}
}

// WithMaxPayloadBytes limits the payload size of stream frames.
func WithMaxPayloadBytes(n uint64) Option {
	return func(o *Options) {
		o.Limits.MaxPayloadBytes = n
	}
}
