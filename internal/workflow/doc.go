// Package workflow implements the client-side synchronization engine for a
// server-executed playlist-generation run.
//
// The core abstractions are:
//
//   - [Store] : the canonical client-side snapshot of one workflow session.
//     All writers (transports, the edit coordinator, direct request/response
//     calls) funnel through its merge entry points; the UI subscribes
//     read-only.
//   - [StatusSource] : the single transport contract, implemented by
//     [Streamer] (live SSE with reconnect backoff) and [Poller] (stage-aware
//     interval polling). [Session.Sync] selects exactly one per session.
//   - [Editor] : optimistic track mutations (reorder/remove/add) with
//     per-edit rollback snapshots and a single debounced reconciliation
//     fetch per burst of edits.
//   - [Searcher] : debounced incremental search where only the latest issued
//     query may apply its results.
//
// Terminal stages (completed, failed) tear the active transport down; a
// terminal status with zero results is surfaced as an error, not retried.
package workflow
