// Package outbox persists queued remote mutations.
//
// A row is inserted PENDING. MarkSent and MarkFailed only touch rows that are
// still PENDING, which makes both idempotent and keeps SENT and FAILED
// terminal at the storage level. ListPending returns rows in enqueue order.
//
// Key Types
//
//   - type Repository        — interface used by the queue layer
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
package outbox
