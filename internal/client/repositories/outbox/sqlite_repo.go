package outbox

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

const selectColumns = `SELECT id, type, keyRef, payloadJson, updatedAt, status, retries, replacedBy FROM outbox`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, op models.OutboxOperation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (id, type, keyRef, payloadJson, updatedAt, status, retries, replacedBy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, string(op.Type), op.KeyRef, op.PayloadJSON, op.UpdatedAt, string(op.Status), op.Retries, op.ReplacedBy)
	if err != nil {
		return fmt.Errorf("failed to insert outbox[%s]: %w", op.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.OutboxOperation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if dbx.NoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox[%s]: %w", id, err)
	}
	return &op, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	return r.ListByStatus(ctx, models.StatusPending, limit)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.OutboxOperation, error) {
	return r.list(ctx, selectColumns+` WHERE status = ? ORDER BY updatedAt ASC, rowid ASC LIMIT ?`, string(status), limit)
}

// ListUnreplacedFailed lists FAILED rows whose write no later row carries yet.
func (r *SQLiteRepository) ListUnreplacedFailed(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	return r.list(ctx, selectColumns+` WHERE status = ? AND replacedBy = '' ORDER BY updatedAt ASC, rowid ASC LIMIT ?`,
		string(models.StatusFailed), limit)
}

// Latest returns the most recently enqueued row for typ and keyRef, or nil.
func (r *SQLiteRepository) Latest(ctx context.Context, typ models.OperationType, keyRef string) (*models.OutboxOperation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		selectColumns+` WHERE type = ? AND keyRef = ? ORDER BY rowid DESC LIMIT 1`, string(typ), keyRef))
	if dbx.NoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest outbox[%s %s]: %w", typ, keyRef, err)
	}
	return &op, nil
}

// MarkReplaced records on a FAILED row the id of the row that took over its
// write. A row is replaced at most once.
func (r *SQLiteRepository) MarkReplaced(ctx context.Context, id, by string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET replacedBy = ? WHERE id = ? AND status = ? AND replacedBy = ''`,
		by, id, string(models.StatusFailed))
	if err != nil {
		return fmt.Errorf("failed to mark outbox[%s] replaced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.OutboxOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ? WHERE id = ? AND status = ?`,
		string(models.StatusSent), id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark outbox[%s] sent: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, retries int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, retries = ? WHERE id = ? AND status = ?`,
		string(models.StatusFailed), retries, id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark outbox[%s] failed: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE status = ?`, string(models.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox: %w", err)
	}
	defer rows.Close()

	counts := models.StatusCounts{
		models.StatusPending: 0,
		models.StatusSent:    0,
		models.StatusFailed:  0,
	}
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		st, err := models.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox counts: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (models.OutboxOperation, error) {
	var op models.OutboxOperation
	var typ, status string
	if err := s.Scan(&op.ID, &typ, &op.KeyRef, &op.PayloadJSON, &op.UpdatedAt, &status, &op.Retries, &op.ReplacedBy); err != nil {
		return models.OutboxOperation{}, err
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return models.OutboxOperation{}, err
	}
	op.Type = models.OperationType(typ)
	op.Status = st
	return op, nil
}
