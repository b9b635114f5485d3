// Package grain defines the identity model of the grain system as seen by
// a client: grain ids, activation ids, silo addresses, references, and the
// invoker contract for locally hosted callback objects.
//
// Identity rules the rest of the runtime depends on:
//
//   - Client generations are negative. Silos allocate positive generations,
//     so the sign alone distinguishes a client address from a silo address.
//   - A client-addressable grain id carries KindClient so gateways route
//     callbacks through the proxied channel instead of placing activations.
//   - System targets are bound to an explicit silo and use a deterministic
//     activation id derived from (grain id, silo).
package grain
