// Package client implements the grain client runtime: the state machine a
// non-hosting process uses to invoke remote grains and to serve callbacks
// into locally registered objects.
//
// # Structure
//
// One Runtime instance owns:
//
//   - the client identity (fresh GUID, negative generation, a
//     client-addressable self grain id);
//   - the callback registry correlating outbound requests to waiting
//     callers, with per-request expiration timers and a resend hook;
//   - the local object registry holding weakly referenced callback objects,
//     each with a FIFO queue drained serially by the pump pool;
//   - the inbound pump, a single consumer of application-category messages
//     from the transport;
//   - the lifecycle (NewRuntime, Start, Reset, Dispose) and the
//     process-wide singleton slot Start claims and Reset clears.
//
// # Ordering guarantees
//
// Per correlation id, at most one delivery reaches the completion sink.
// Per local object, messages are invoked strictly in enqueue order with no
// two drains active at once. Nothing is guaranteed across objects or
// across distinct outbound requests.
package client
