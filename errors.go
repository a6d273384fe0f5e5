package mediaroute

import "github.com/wagiedev/mediaroute-go/internal/errors"

// Re-export error types from internal package

// ConnectionError indicates a service connection became unusable.
type ConnectionError = errors.ConnectionError

// TransportError indicates a message channel failed to send or receive.
type TransportError = errors.TransportError

// PayloadError indicates a malformed payload from the service.
type PayloadError = errors.PayloadError

// ServiceNotFoundError indicates a service executable could not be located.
type ServiceNotFoundError = errors.ServiceNotFoundError

// ProcessError indicates a service process exited unexpectedly.
type ProcessError = errors.ProcessError

// MediaRouteError is the base interface for all typed errors.
type MediaRouteError = errors.MediaRouteError

// Re-export sentinel errors from internal package.
var (
	// ErrDeadObject indicates the remote endpoint is no longer reachable.
	ErrDeadObject = errors.ErrDeadObject

	// ErrSecurity indicates a bind was rejected by policy.
	ErrSecurity = errors.ErrSecurity

	// ErrInvalidEndpoint indicates the service delivered a malformed endpoint.
	ErrInvalidEndpoint = errors.ErrInvalidEndpoint

	// ErrNotAttached indicates a route controller has no ready connection.
	ErrNotAttached = errors.ErrNotAttached

	// ErrSendFailed indicates a request could not be delivered to the service.
	ErrSendFailed = errors.ErrSendFailed

	// ErrProviderClosed indicates the provider has been closed and cannot be reused.
	ErrProviderClosed = errors.ErrProviderClosed

	// ErrRouteNotFound indicates the route is not in the current descriptor.
	ErrRouteNotFound = errors.ErrRouteNotFound

	// ErrRegistrationFailed indicates the service refused client registration.
	ErrRegistrationFailed = errors.ErrRegistrationFailed

	// ErrPayloadTooLarge indicates a frame exceeded the configured payload limit.
	ErrPayloadTooLarge = errors.ErrPayloadTooLarge
)
