// Package outbox is the logical queue of remote mutations on top of the
// local store.
//
// Every operation starts PENDING and moves exactly once, to SENT or to
// FAILED. A FAILED operation is never picked up again; Requeue enqueues a
// fresh PENDING operation for it when a user asks for it and links the two
// through the failed row's ReplacedBy.
//
// Claims mark operations that a caller is delivering right now so that a
// concurrently running sync cycle in the same process skips them.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// ErrIllegalTransition is returned for a status change the state machine
// does not allow.
var ErrIllegalTransition = errors.New("illegal outbox transition")

// ErrReplaced is returned by Requeue for a failed operation whose write a
// later operation already carries.
var ErrReplaced = errors.New("outbox operation already replaced")

// Storage is the part of the local store the queue needs.
type Storage interface {
	Enqueue(ctx context.Context, typ models.OperationType, keyRef, payloadJSON string, updatedAt int64) (string, error)
	GetOperation(ctx context.Context, id string) (*models.OutboxOperation, error)
	ListPending(ctx context.Context, limit int) ([]models.OutboxOperation, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, retries int) error
	MarkReplaced(ctx context.Context, id, by string) error
	LatestOperation(ctx context.Context, typ models.OperationType, keyRef string) (*models.OutboxOperation, error)
	CountPending(ctx context.Context) (int, error)

	GetDiary(ctx context.Context, dateID string) (*models.DiaryEntry, error)
	GetMood(ctx context.Context, dateID string) (*models.MoodLog, error)
}

type Queue struct {
	st Storage

	mu      sync.Mutex
	claimed map[string]struct{}
}

func New(st Storage) *Queue {
	return &Queue{st: st, claimed: map[string]struct{}{}}
}

// Append serializes p and enqueues it on st. It is a function rather than a
// method so callers can enqueue on a transaction-bound store.
func Append(ctx context.Context, st Storage, typ models.OperationType, keyRef string, p models.Payload, at int64) (models.OutboxOperation, error) {
	raw, err := p.Encode()
	if err != nil {
		return models.OutboxOperation{}, err
	}
	id, err := st.Enqueue(ctx, typ, keyRef, raw, at)
	if err != nil {
		return models.OutboxOperation{}, err
	}
	return models.OutboxOperation{
		ID:          id,
		Type:        typ,
		KeyRef:      keyRef,
		PayloadJSON: raw,
		UpdatedAt:   at,
		Status:      models.StatusPending,
	}, nil
}

// Append enqueues p on the queue's own store.
func (q *Queue) Append(ctx context.Context, typ models.OperationType, keyRef string, p models.Payload, at int64) (models.OutboxOperation, error) {
	return Append(ctx, q.st, typ, keyRef, p, at)
}

// Pending returns up to limit PENDING operations in enqueue order, skipping
// claimed ones.
func (q *Queue) Pending(ctx context.Context, limit int) ([]models.OutboxOperation, error) {
	q.mu.Lock()
	extra := len(q.claimed)
	q.mu.Unlock()

	ops, err := q.st.ListPending(ctx, limit+extra)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.OutboxOperation, 0, len(ops))
	for _, op := range ops {
		if _, busy := q.claimed[op.ID]; busy {
			continue
		}
		out = append(out, op)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len is the number of PENDING operations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.st.CountPending(ctx)
}

// Complete records a successful delivery of op.
func (q *Queue) Complete(ctx context.Context, op models.OutboxOperation) error {
	if !op.Status.CanTransitionTo(models.StatusSent) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, op.ID, op.Status, models.StatusSent)
	}
	return q.st.MarkSent(ctx, op.ID)
}

// Fail records a failed delivery of op and bumps its retry counter.
func (q *Queue) Fail(ctx context.Context, op models.OutboxOperation) error {
	if !op.Status.CanTransitionTo(models.StatusFailed) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, op.ID, op.Status, models.StatusFailed)
	}
	return q.st.MarkFailed(ctx, op.ID, op.Retries+1)
}

// Requeue enqueues a new PENDING operation at time at for the FAILED
// operation id and records the new id as the failed row's ReplacedBy. The
// failed row itself stays FAILED. Call it on a transaction-bound store.
//
// Diary and mood operations write a whole day. When a later operation exists
// for the same type and day, the failed one is only marked replaced by it and
// false is returned. Otherwise the payload is rebuilt from the current local
// row, so a requeue never sends a value older than the local one.
func Requeue(ctx context.Context, st Storage, id string, at int64) (models.OutboxOperation, bool, error) {
	op, err := st.GetOperation(ctx, id)
	if err != nil {
		return models.OutboxOperation{}, false, err
	}
	if op == nil {
		return models.OutboxOperation{}, false, fmt.Errorf("outbox operation %s: %w", id, common.ErrNotFound)
	}
	switch op.Status {
	case models.StatusFailed:
	case models.StatusPending, models.StatusSent:
		return models.OutboxOperation{}, false, fmt.Errorf("%w: only failed operations can be requeued, %s is %s", ErrIllegalTransition, id, op.Status)
	default:
		return models.OutboxOperation{}, false, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, op.Status)
	}
	if op.ReplacedBy != "" {
		return models.OutboxOperation{}, false, fmt.Errorf("%w: %s by %s", ErrReplaced, id, op.ReplacedBy)
	}

	raw := op.PayloadJSON
	switch op.Type {
	case models.OpUpsertDiary, models.OpUpsertMood:
		latest, err := st.LatestOperation(ctx, op.Type, op.KeyRef)
		if err != nil {
			return models.OutboxOperation{}, false, err
		}
		if latest != nil && latest.ID != op.ID {
			return models.OutboxOperation{}, false, st.MarkReplaced(ctx, op.ID, latest.ID)
		}
		if raw, err = currentPayload(ctx, st, *op); err != nil {
			return models.OutboxOperation{}, false, err
		}
	}

	newID, err := st.Enqueue(ctx, op.Type, op.KeyRef, raw, at)
	if err != nil {
		return models.OutboxOperation{}, false, err
	}
	if err := st.MarkReplaced(ctx, op.ID, newID); err != nil {
		return models.OutboxOperation{}, false, err
	}
	return models.OutboxOperation{
		ID:          newID,
		Type:        op.Type,
		KeyRef:      op.KeyRef,
		PayloadJSON: raw,
		UpdatedAt:   at,
		Status:      models.StatusPending,
	}, true, nil
}

// currentPayload encodes the local diary or mood row op refers to. op's own
// payload is kept when it cannot be decoded, when the row is gone, or when
// the row is older than the payload.
func currentPayload(ctx context.Context, st Storage, op models.OutboxOperation) (string, error) {
	p, err := models.DecodePayload(op.PayloadJSON)
	if err != nil {
		return op.PayloadJSON, nil
	}

	var fresh models.Payload
	switch op.Type {
	case models.OpUpsertDiary:
		d, err := st.GetDiary(ctx, p.DateID)
		if err != nil {
			return "", err
		}
		if d == nil || d.UpdatedAt < p.CreatedAt {
			return op.PayloadJSON, nil
		}
		fresh = models.DiaryPayload(d.DateID, d.Text, d.UpdatedAt)
	case models.OpUpsertMood:
		m, err := st.GetMood(ctx, p.DateID)
		if err != nil {
			return "", err
		}
		if m == nil || m.UpdatedAt < p.CreatedAt {
			return op.PayloadJSON, nil
		}
		fresh = models.MoodPayload(m.DateID, m.Mood, m.UpdatedAt)
	default:
		return op.PayloadJSON, nil
	}
	return fresh.Encode()
}

// Claim marks id as being delivered by the caller. It returns false when id
// is already claimed.
func (q *Queue) Claim(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.claimed[id]; ok {
		return false
	}
	q.claimed[id] = struct{}{}
	return true
}

func (q *Queue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, id)
}
