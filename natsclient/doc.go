// Package natsclient manages NATS connections for the gateway transport and
// the telemetry publisher; each of them opens its own client.
//
// The client wraps nats.go with connection lifecycle handling (status
// tracking, reconnect callbacks, failure counting) and exposes
// the raw connection, JetStream, and KV buckets to the layers above. It
// deliberately knows nothing about grain messages — the transport package
// owns subjects and framing.
package natsclient
