// Package progress reports crawl and index runs as a stream of events. Runs
// carry their ID and an Emitter in the context, so the engine, PDF ingestor
// and indexer report page, PDF and batch outcomes without knowing who
// listens. A Hub batches events on a background goroutine and fans them out
// to sinks (logs, Prometheus, the in-memory run tracker).
package progress
