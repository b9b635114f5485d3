// Package config defines the client runtime configuration.
//
// ClientConfig is immutable after construction: the runtime validates it
// once in NewRuntime and never re-reads mutable state from it. Timeouts
// that depend on the debugging override (ResponseTimeout) are resolved at
// construction via EffectiveResponseTimeout.
package config
