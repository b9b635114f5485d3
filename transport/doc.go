// Package transport defines the proxied gateway channel the client runtime
// consumes, and provides the NATS-backed implementation.
//
// The runtime sees a narrow contract: start/stop, send, a blocking
// category-partitioned receive, observer registration, and the gateway
// metadata fetches (type-code map, implicit stream subscriber table). How
// messages actually reach a gateway — subjects, framing, reconnection — is
// owned entirely by this package.
//
// Connection management, including disconnect/reconnect test hooks, lives
// on the Transport so tests can exercise gateway failure paths without a
// live cluster.
package transport
