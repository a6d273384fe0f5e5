package errors

import (
	"errors"
	"fmt"
)

// MediaRouteError is the base interface for all typed errors of this module.
type MediaRouteError interface {
	error
	IsMediaRouteError() bool
}

// Compile-time verification that all error types implement MediaRouteError.
var (
	_ MediaRouteError = (*ConnectionError)(nil)
	_ MediaRouteError = (*TransportError)(nil)
	_ MediaRouteError = (*PayloadError)(nil)
	_ MediaRouteError = (*ServiceNotFoundError)(nil)
	_ MediaRouteError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrDeadObject indicates the remote endpoint is no longer reachable.
	ErrDeadObject = errors.New("remote endpoint is dead")

	// ErrChannelClosed indicates the local side of a channel has been closed.
	ErrChannelClosed = errors.New("channel closed")

	// ErrSecurity indicates the binding subsystem rejected a bind request by policy.
	ErrSecurity = errors.New("bind rejected by security policy")

	// ErrInvalidEndpoint indicates the service delivered a missing or malformed endpoint.
	ErrInvalidEndpoint = errors.New("service returned invalid messenger endpoint")

	// ErrNotAttached indicates a route controller has no active connection.
	ErrNotAttached = errors.New("route controller not attached to a connection")

	// ErrSendFailed indicates a request could not be delivered to the service.
	ErrSendFailed = errors.New("request could not be sent to service")

	// ErrLooperStopped indicates the owning loop has stopped.
	ErrLooperStopped = errors.New("looper stopped")

	// ErrProviderClosed indicates the provider has been closed and cannot be reused.
	ErrProviderClosed = errors.New("provider closed: create a new one with NewProvider()")

	// ErrRouteNotFound indicates the route is not present in the current descriptor.
	ErrRouteNotFound = errors.New("route not found in provider descriptor")

	// ErrRegistrationFailed indicates the service refused or failed client registration.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrPayloadTooLarge indicates a frame exceeds the configured payload limit.
	ErrPayloadTooLarge = errors.New("frame payload too large")

	// ErrBadMagic indicates a frame header does not start with the expected magic.
	ErrBadMagic = errors.New("frame header has bad magic")
)

// ConnectionError is reported upstream when a connection becomes unusable.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service connection error: %s: %v", e.Reason, e.Err)
	}

	return "service connection error: " + e.Reason
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsMediaRouteError implements MediaRouteError.
func (e *ConnectionError) IsMediaRouteError() bool { return true }

// TransportError indicates a message could not be sent or received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsMediaRouteError implements MediaRouteError.
func (e *TransportError) IsMediaRouteError() bool { return true }

// PayloadError indicates an inbound payload had the wrong shape or content.
// It is only ever logged; malformed payloads are never propagated to callers.
type PayloadError struct {
	Op  string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Op, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// IsMediaRouteError implements MediaRouteError.
func (e *PayloadError) IsMediaRouteError() bool { return true }

// ServiceNotFoundError indicates a provider service executable was not found.
type ServiceNotFoundError struct {
	Name          string
	SearchedPaths []string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("provider service %s not found in: %v", e.Name, e.SearchedPaths)
}

// IsMediaRouteError implements MediaRouteError.
func (e *ServiceNotFoundError) IsMediaRouteError() bool { return true }

// ProcessError indicates a provider service process exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider service process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("provider service process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsMediaRouteError implements MediaRouteError.
func (e *ProcessError) IsMediaRouteError() bool { return true }
