// Package app provides the orchestration layer for the Lantern application.
//
// # Overview
//
// This package wires together configuration, the ingestion pipeline, record
// sources, and the UI to create the complete Lantern experience. It serves as
// the composition root where all dependencies are initialized and connected.
//
// # Architecture
//
// The app package follows a simple initialization pattern:
//
//  1. Load configuration from ~/.config/lantern/config.toml
//  2. Load user preferences (theme, severity threshold)
//  3. Create the bounded record store and ingestion queue
//  4. Build the pipeline with its single consumer loop and the main view
//  5. Launch the record source (file tail or stdin stream)
//  6. Start the TUI and block until the user exits or the context cancels
//
// # Data Flow
//
//	Producers (tail, stdin, lantern's own slog output)
//	       │  Enqueue: non-blocking, drop on overflow
//	       ▼
//	Ingestion queue ──> consumer loop ──> store append ──> view updates
//	                                                          │
//	                                        coalesced Flush per batch
//	                                                          ▼
//	                                              UI subscriber messages
//
// All store and view mutation happens on the pipeline's consumer loop.
// Filter edits, resizes, and clears from the UI are marshaled onto that
// loop with Pipeline.Do, so producers never block and views never race.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Configuration file invalid
//   - Invalid severity threshold, store capacity, or initial filter
//
// Recoverable errors (logged, pipeline continues):
//   - Tail or stream failures on the input source
//   - Filter compile errors on live edits (the previous filter stays active)
//   - Per-view predicate faults (the view degrades, the store is unaffected)
//
// In TUI mode lantern's own diagnostics are routed into the pipeline through
// a slog handler, so they appear in the store next to the tailed records
// instead of corrupting the terminal.
package app
