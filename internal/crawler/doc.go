// Package crawler implements the single-worker site crawl: URL classification,
// the depth-bounded frontier, HTML extraction, and the session accumulator that
// becomes the persisted snapshot.
package crawler
