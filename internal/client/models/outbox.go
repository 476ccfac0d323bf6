package models

import "fmt"

// OperationType names the remote mutation an outbox row stands for.
// The string values are persisted.
type OperationType string

const (
	OpUpsertDiary      OperationType = "UPSERT_DIARY"
	OpUpsertMood       OperationType = "UPSERT_MOOD"
	OpUpsertReflection OperationType = "UPSERT_REFLECTION"
)

// Known reports whether t is one of the recognised operation types.
func (t OperationType) Known() bool {
	switch t {
	case OpUpsertDiary, OpUpsertMood, OpUpsertReflection:
		return true
	default:
		return false
	}
}

// Status is the delivery state of an outbox row. The string values are
// persisted.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// ParseStatus converts a stored value back into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusSent, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown outbox status %q", s)
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusFailed:
		return true
	case StatusPending:
		return false
	default:
		return true
	}
}

// CanTransitionTo reports whether s -> next is a legal move. Only
// PENDING -> SENT and PENDING -> FAILED are; FAILED never returns to
// PENDING.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		switch next {
		case StatusSent, StatusFailed:
			return true
		case StatusPending:
			return false
		}
	case StatusSent, StatusFailed:
		return false
	}
	return false
}

// OutboxOperation is one queued remote mutation.
type OutboxOperation struct {
	ID          string
	Type        OperationType
	KeyRef      string // logical key, the date id for every current type
	PayloadJSON string
	UpdatedAt   int64 // enqueue time, epoch ms; FIFO order
	Status      Status
	Retries     int
	ReplacedBy  string // id of the later op that carries a FAILED op's write
}

// StatusCounts is a per-status row count.
type StatusCounts map[Status]int
