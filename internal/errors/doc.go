// Package errors defines error types for the media route provider client.
//
// This package provides sentinel errors for commonly checked conditions and
// structured error types that wrap transport, payload and connection
// failures. All error types support error unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors
