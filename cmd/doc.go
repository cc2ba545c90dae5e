// Package cmd defines the CLI for the crawl, index and answer pipeline.
//
// Architecture overview:
//   - crawl: a single-worker engine walks the site from the seed URLs under page and depth
//     limits, records pages and links by kind, drains up to pdf.max_documents PDFs and saves a
//     timestamped snapshot through the configured BlobStore (local/GCS/memory). A Pub/Sub
//     notification is published when a topic is configured.
//   - index: loads a snapshot (newest by default), builds the link database and document
//     chunks, and embeds/upserts the chunks in paced batches into the vector store
//     (memory/pgvector/weaviate). --reset clears the store first.
//   - serve: exposes chat, search and index stats over HTTP with the link database loaded from
//     the newest snapshot. With the memory vector store the newest snapshot is indexed on start.
//   - ask: answers one question from the terminal.
//
// Configuration: Viper reads an optional YAML file and UNIRAG_* environment variables; a .env
// file is loaded first when present. Model credentials are only required by commands that embed
// or generate.
package cmd
