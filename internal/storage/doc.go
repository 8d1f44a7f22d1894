// Package storage persists the item queue and the history of published posts.
//
// Drivers:
//   - "sqlite": a single database file (modernc.org/sqlite, no cgo)
//   - "postgres": a PostgreSQL database reached through pgx
//   - "memory": in-process state for tests and dry runs
//
// The queue is an ordered list addressed by 1-based positions. Positions are
// always dense (1..N); ApplyRotation is the only operation that reorders it.
package storage
