// Package diary persists the one-per-day diary entries of the local store.
//
// Rows are keyed by date id; Upsert replaces the text and timestamp of an
// existing day. Get returns (nil, nil) for a day that has no entry.
//
//	repo := diary.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, models.DiaryEntry{DateID: "2025-03-14", Text: "...", UpdatedAt: now})
//	recent, _ := repo.ListRecent(ctx, 7)
package diary
