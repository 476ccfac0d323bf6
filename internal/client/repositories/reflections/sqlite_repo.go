package reflections

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

func (r *SQLiteRepository) Insert(ctx context.Context, ref models.Reflection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reflections (id, dateId, text, updatedAt) VALUES (?, ?, ?, ?)`,
		ref.ID, ref.DateID, ref.Text, ref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reflection[%s]: %w", ref.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByDate(ctx context.Context, dateID string) ([]models.Reflection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dateId, text, updatedAt FROM reflections
		WHERE dateId = ?
		ORDER BY updatedAt ASC, rowid ASC
	`, dateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reflections[%s]: %w", dateID, err)
	}
	defer rows.Close()

	var result []models.Reflection
	for rows.Next() {
		var ref models.Reflection
		if err := rows.Scan(&ref.ID, &ref.DateID, &ref.Text, &ref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reflection row: %w", err)
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reflection rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListDaysRecent(ctx context.Context, n int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT dateId FROM reflections ORDER BY dateId DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list reflection days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan reflection day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reflection days: %w", err)
	}
	return days, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, ref models.Reflection) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reflections
		WHERE id = ? OR (dateId = ? AND text = ? AND updatedAt = ?)
	`, ref.ID, ref.DateID, ref.Text, ref.UpdatedAt).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up reflection[%s]: %w", ref.ID, err)
	}
	return n > 0, nil
}
