// Package store is the local database of the client: diary, mood and
// reflection records plus the outbox of pending remote mutations.
//
// # Overview
//
// Store wraps one SQLite database (modernc.org/sqlite) whose schema is managed
// by the embedded goose migrations in internal/client/migrations. Each table
// has its own repository under internal/client/repositories; Store exposes
// the operations callers need and tags every storage fault with
// common.ErrStorage. A missing record is never an error: getters return nil.
//
// # Concurrency
//
// The database handle is limited to a single open connection, so writes
// from the foreground commands and the background sync worker are
// serialized by database/sql. WithTx hands the callback a Store bound to the
// transaction; the callback must use that Store and not the outer one.
//
// Typical Usage
//
//	st, err := store.Open(ctx, "moodkeeper.db")
//	defer st.Close()
//
//	err = st.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
//	    if err := tx.UpsertMood(ctx, "2025-03-14", 4, now); err != nil {
//	        return err
//	    }
//	    _, err := tx.Enqueue(ctx, models.OpUpsertMood, "2025-03-14", payload, now)
//	    return err
//	})
package store
