// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /healthz / readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/chat to answer a question from the indexed site.
//   - GET /v1/search?q= for raw nearest-chunk retrieval.
//   - GET /v1/index/stats for vector store counts.
//   - GET /v1/crawl/state for the crawl controller phase.
//   - POST /v1/jobs to queue a crawl or index run; GET /v1/jobs and
//     GET /v1/jobs/{id} report tracked runs.
package api
