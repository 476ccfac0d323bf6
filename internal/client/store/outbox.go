package store

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/google/uuid"
)

// Enqueue inserts a PENDING operation with zero retries and returns its id.
func (s *Store) Enqueue(ctx context.Context, typ models.OperationType, keyRef, payloadJSON string, updatedAt int64) (string, error) {
	op := models.OutboxOperation{
		ID:          uuid.NewString(),
		Type:        typ,
		KeyRef:      keyRef,
		PayloadJSON: payloadJSON,
		UpdatedAt:   updatedAt,
		Status:      models.StatusPending,
	}
	if err := s.outbox.Insert(ctx, op); err != nil {
		return "", wrap(err)
	}
	return op.ID, nil
}

// GetOperation returns nil for an unknown id.
func (s *Store) GetOperation(ctx context.Context, id string) (*models.OutboxOperation, error) {
	op, err := s.outbox.Get(ctx, id)
	return op, wrap(err)
}

// ListPending returns at most limit PENDING operations in enqueue order.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	if limit <= 0 {
		return nil, nil
	}
	l, err := s.outbox.ListPending(ctx, limit)
	return l, wrap(err)
}

// ListFailed returns at most limit FAILED operations, oldest first.
func (s *Store) ListFailed(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	if limit <= 0 {
		return nil, nil
	}
	l, err := s.outbox.ListByStatus(ctx, models.StatusFailed, limit)
	return l, wrap(err)
}

// ListRequeueable returns at most limit FAILED operations that have not been
// replaced by a later operation, oldest first.
func (s *Store) ListRequeueable(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	if limit <= 0 {
		return nil, nil
	}
	l, err := s.outbox.ListUnreplacedFailed(ctx, limit)
	return l, wrap(err)
}

// LatestOperation returns the last operation enqueued for typ and keyRef, in
// any status, or nil.
func (s *Store) LatestOperation(ctx context.Context, typ models.OperationType, keyRef string) (*models.OutboxOperation, error) {
	op, err := s.outbox.Latest(ctx, typ, keyRef)
	return op, wrap(err)
}

// MarkReplaced links the FAILED operation id to the operation by that now
// carries its write. Other rows are left untouched.
func (s *Store) MarkReplaced(ctx context.Context, id, by string) error {
	return wrap(s.outbox.MarkReplaced(ctx, id, by))
}

// MarkSent moves a PENDING operation to SENT. Unknown ids and rows that are
// already terminal are left untouched.
func (s *Store) MarkSent(ctx context.Context, id string) error {
	return wrap(s.outbox.MarkSent(ctx, id))
}

// MarkFailed moves a PENDING operation to FAILED and records retries.
// Unknown ids and rows that are already terminal are left untouched.
func (s *Store) MarkFailed(ctx context.Context, id string, retries int) error {
	return wrap(s.outbox.MarkFailed(ctx, id, retries))
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	n, err := s.outbox.CountPending(ctx)
	return n, wrap(err)
}

func (s *Store) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	c, err := s.outbox.CountByStatus(ctx)
	return c, wrap(err)
}
