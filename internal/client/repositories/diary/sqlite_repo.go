package diary

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

func (r *SQLiteRepository) Upsert(ctx context.Context, e models.DiaryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO diary (dateId, text, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(dateId) DO UPDATE SET
			text = excluded.text,
			updatedAt = excluded.updatedAt
	`, e.DateID, e.Text, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert diary[%s]: %w", e.DateID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, dateID string) (*models.DiaryEntry, error) {
	e := &models.DiaryEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT dateId, text, updatedAt FROM diary WHERE dateId = ?`, dateID,
	).Scan(&e.DateID, &e.Text, &e.UpdatedAt)
	if dbx.NoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diary[%s]: %w", dateID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, n int) ([]models.DiaryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dateId, text, updatedAt FROM diary ORDER BY dateId DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary: %w", err)
	}
	defer rows.Close()

	var result []models.DiaryEntry
	for rows.Next() {
		var e models.DiaryEntry
		if err := rows.Scan(&e.DateID, &e.Text, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diary row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diary rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListDaysWithText(ctx context.Context, n int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dateId FROM diary WHERE TRIM(text) <> '' ORDER BY dateId DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan diary day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diary days: %w", err)
	}
	return days, nil
}
