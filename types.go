package mediaroute

import (
	"github.com/wagiedev/mediaroute-go/internal/binding"
	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// ===== Service identity =====

// ComponentName identifies a provider service by package and class.
type ComponentName = binding.ComponentName

// ParseComponentName parses "package/class", where a class starting with
// "." is relative to the package.
func ParseComponentName(s string) (ComponentName, error) {
	return binding.ParseComponentName(s)
}

// ===== Descriptors =====

// ProviderDescriptor lists the routes a provider service publishes.
type ProviderDescriptor = descriptor.ProviderDescriptor

// RouteDescriptor describes one route.
type RouteDescriptor = descriptor.RouteDescriptor

// Playback types.
const (
	PlaybackTypeLocal  = descriptor.PlaybackTypeLocal
	PlaybackTypeRemote = descriptor.PlaybackTypeRemote
)

// Volume handling modes.
const (
	VolumeHandlingFixed    = descriptor.VolumeHandlingFixed
	VolumeHandlingVariable = descriptor.VolumeHandlingVariable
)

// ===== Control requests =====

// ControlRequest is the control intent forwarded to a route.
type ControlRequest = channel.ControlRequest

// Bundle is a string keyed payload of JSON compatible values.
type Bundle = channel.Bundle

// ControlResult is the outcome of a route control request.
type ControlResult = protocol.ControlResult

// ControlRequestCallback receives the result of a route control request.
type ControlRequestCallback = protocol.ControlRequestCallback

// Control request result codes.
const (
	ResultSucceeded = protocol.ResultSucceeded
	ResultFailed    = protocol.ResultFailed
)
