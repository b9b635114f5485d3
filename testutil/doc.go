// Package testutil provides in-memory doubles for the runtime's external
// collaborators: a fake gateway transport and a capturing statistics
// publisher. Tests drive the runtime end to end without a NATS server.
package testutil
