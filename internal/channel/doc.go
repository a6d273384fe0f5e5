// Package channel implements the asynchronous message channel between a
// media route client and a provider service.
//
// A Messenger is a send-only handle to an endpoint in another process. Each
// Message carries an opcode, a correlation id, an integer argument, an
// optional payload (a Bundle or a ControlRequest) and an optional reply
// address. A Messenger's Binder reports liveness and delivers death
// notifications to linked DeathRecipients.
//
// Three endpoint kinds are provided:
//   - HandlerMessenger: a receive endpoint that posts deliveries onto a looper
//   - StreamMessenger: an endpoint over a byte stream (unix socket, pipe)
//     using a fixed binary frame header and JSON payloads
//   - LocalBinder: an in-process binder that can be killed to simulate
//     remote process death
package channel
