// Package provider implements the client side of a registered media route
// provider: it binds to the provider service, keeps at most one registered
// protocol.Connection alive and hands out route controllers that survive
// connection replacement.
//
// All provider and controller state is confined to one owning looper.
// Binding callbacks, replies and death notifications are posted onto it;
// exported methods run there through Looper.Call and are safe to use from
// any goroutine. User callbacks run on a second looper so they may call
// back into the provider.
package provider
