// Package message defines the wire message model of the grain client
// runtime.
//
// A Message is owned by its current holder: once handed to the transport,
// the sender must not touch it again. Correlation ids are unique within the
// process for the lifetime of any outstanding request, which is what lets
// the callback registry match responses to waiting callers.
//
// Expiration stamps absorb cross-node clock skew by adding MaxClockSkew on
// top of the response timeout; only expirable, non-system-target messages
// carry a stamp.
package message
