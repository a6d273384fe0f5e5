package protocol

import (
	"github.com/wagiedev/mediaroute-go/internal/channel"
)

// Control request result codes.
const (
	ResultSucceeded = 0
	ResultFailed    = 1
)

// ControlResult is the outcome of a route control request.
//
// Code is whatever the service reported, or ResultFailed when the service
// sent a generic failure or the connection was disposed before a reply.
type ControlResult struct {
	Code int
	Data channel.Bundle
}

// Failed reports whether the request failed.
func (r ControlResult) Failed() bool {
	return r.Code == ResultFailed
}

// ControlRequestCallback receives the result of a route control request.
// It is invoked exactly once, on the callback executor, never on the owning loop.
type ControlRequestCallback func(result ControlResult)

var failedResult = ControlResult{Code: ResultFailed}
