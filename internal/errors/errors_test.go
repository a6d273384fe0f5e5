package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionError_ReasonOnly(t *testing.T) {
	err := &ConnectionError{Reason: "Registration failed"}

	require.Equal(t, "service connection error: Registration failed", err.Error())
	require.NoError(t, err.Unwrap())
	require.True(t, err.IsMediaRouteError())
}

func TestConnectionError_WithUnderlyingError(t *testing.T) {
	err := &ConnectionError{Reason: "Registration failed", Err: ErrRegistrationFailed}

	require.Equal(t, "service connection error: Registration failed: registration failed", err.Error())
	require.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestTransportError(t *testing.T) {
	err := &TransportError{Op: "send", Err: ErrDeadObject}

	require.Equal(t, "transport send failed: remote endpoint is dead", err.Error())
	require.ErrorIs(t, err, ErrDeadObject)
	require.True(t, err.IsMediaRouteError())
}

func TestPayloadError(t *testing.T) {
	root := errors.New("missing routes")
	err := &PayloadError{Op: "descriptor", Err: root}

	require.Equal(t, "malformed descriptor payload: missing routes", err.Error())
	require.ErrorIs(t, err, root)

	var target MediaRouteError

	require.ErrorAs(t, err, &target)
}

func TestServiceNotFoundError(t *testing.T) {
	err := &ServiceNotFoundError{Name: "cast-provider", SearchedPaths: []string{"$PATH", "/usr/libexec/mediaroute/cast-provider"}}

	require.Contains(t, err.Error(), "provider service cast-provider not found")
	require.Contains(t, err.Error(), "/usr/libexec/mediaroute/cast-provider")
	require.True(t, err.IsMediaRouteError())
}

func TestProcessError(t *testing.T) {
	withStderr := &ProcessError{ExitCode: 2, Stderr: "bad config"}
	require.Equal(t, "provider service process failed (exit 2): bad config", withStderr.Error())

	root := errors.New("signal: killed")
	wrapped := &ProcessError{ExitCode: -1, Err: root}
	require.Equal(t, "provider service process failed (exit -1): signal: killed", wrapped.Error())
	require.ErrorIs(t, wrapped, root)
}
