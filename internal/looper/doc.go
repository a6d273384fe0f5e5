// Package looper provides the single owning execution context of a provider.
//
// A Looper runs posted tasks one at a time, in posting order, on its own
// goroutine. All provider, connection and route controller state is only
// touched from inside tasks of one Looper, so none of it needs locking.
// Work that originates on other goroutines (inbound replies, death
// notifications, service binding callbacks) is posted onto the Looper
// before it touches any state.
//
// Example usage:
//
//	loop := looper.New(log, "provider")
//	loop.Start()
//	defer loop.Stop()
//
//	loop.Post(func() { /* runs on the loop goroutine */ })
//
//	// Wait until everything posted so far has run
//	_ = loop.Flush(ctx)
package looper
