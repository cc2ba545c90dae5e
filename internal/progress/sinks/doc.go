// Package sinks hosts progress.Sink implementations: structured logs,
// Prometheus run metrics and the in-memory run tracker behind the jobs API.
package sinks
