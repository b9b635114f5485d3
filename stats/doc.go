// Package stats implements client telemetry: a registry of named counters
// and the table statistics publisher that periodically batches them into
// rows for an external store.
//
// Row keys are the compatibility contract: partition is
// "deploymentID:YYYY-MM-DD" (UTC, Gregorian) and row is
// "name[:clientEpoch]:seq6" where seq6 is a zero-padded six-digit monotonic
// counter. Counters whose serialized value is "0" are skipped, and flushes
// respect the publisher's bulk row cap by emitting intermediate batches.
package stats
