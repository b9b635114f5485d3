// Package orleans provides the client-side runtime for a distributed grain
// (virtual actor) system. A non-hosting process uses it to invoke methods on
// remote grains through a proxied gateway channel, to expose local callback
// objects that remote grains can call, and to publish client telemetry.
//
// # Architecture
//
// The runtime is a small in-process state machine built from independent
// pieces wired together by the client lifecycle:
//
//   - Identity: each client gets a fresh GUID and a negative generation so
//     clients are distinguishable from silos by sign.
//   - Outbound path: requests are stamped with sender/target identities,
//     given a correlation id, registered with an expiring callback, and
//     handed to the transport.
//   - Inbound pump: a single consumer drains application messages from the
//     transport; responses complete waiting callbacks, requests are routed
//     to locally registered callback objects.
//   - Local objects: callback objects are held weakly and served by a
//     per-object FIFO pump so each object sees strictly serial invocations.
//   - Statistics: counters are batched into table rows and flushed to an
//     external publisher in bounded bulks.
//
// The gateway channel itself is pluggable. The transport package defines the
// narrow contract the runtime consumes and ships a NATS-backed
// implementation; tests substitute an in-memory fake.
//
// # Package map
//
//   - client: the core runtime (callbacks, local objects, pumps, lifecycle)
//   - grain: grain/activation/silo identities and references
//   - message: the wire message model
//   - transport: gateway channel contract + NATS implementation
//   - serializer: deep-copy serializer used for response payloads
//   - stats: counter registry and table statistics publisher
//   - metric: Prometheus metrics registry
//   - config: client configuration
//   - errors: classified error handling
package orleans
