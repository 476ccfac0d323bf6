package moods

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, m models.MoodLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mood (dateId, mood, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(dateId) DO UPDATE SET
			mood = excluded.mood,
			updatedAt = excluded.updatedAt
	`, m.DateID, m.Mood, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mood[%s]: %w", m.DateID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, dateID string) (*models.MoodLog, error) {
	m := &models.MoodLog{}
	err := r.db.QueryRowContext(ctx,
		`SELECT dateId, mood, updatedAt FROM mood WHERE dateId = ?`, dateID,
	).Scan(&m.DateID, &m.Mood, &m.UpdatedAt)
	if dbx.NoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mood[%s]: %w", dateID, err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, n int) ([]models.MoodLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dateId, mood, updatedAt FROM mood ORDER BY dateId DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	defer rows.Close()

	var result []models.MoodLog
	for rows.Next() {
		var m models.MoodLog
		if err := rows.Scan(&m.DateID, &m.Mood, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mood row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood rows: %w", err)
	}
	return result, nil
}
