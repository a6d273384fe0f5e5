// Package protocol implements the client side of the media route provider
// service protocol.
//
// A Connection owns one channel.Messenger to a remote provider service. It
// registers the client, allocates per-connection request and controller
// ids, and routes asynchronous replies either to pending control request
// callbacks or to lifecycle notifications on its Listener.
//
// Every Connection method must run on the owning loop. Replies and death
// notifications arriving on other goroutines are posted onto that loop
// before they touch any state.
//
// Lifecycle:
//
//	conn := protocol.NewConnection(log, service, loop, callbacks, listener, protocol.ClientVersionCurrent)
//	if !conn.Register() {
//	    conn.Dispose()
//	}
//	// ... listener.OnConnectionReady(conn) once REGISTERED arrives
//	conn.Dispose()
package protocol
