package reflections

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, r models.Reflection) error
	// ListByDate returns the reflections of one day, oldest first.
	ListByDate(ctx context.Context, dateID string) ([]models.Reflection, error)
	// ListDaysRecent returns at most n distinct date ids, newest first.
	ListDaysRecent(ctx context.Context, n int) ([]string, error)
	// Exists reports whether a row with r.ID, or with the same date, text and
	// timestamp, is already stored.
	Exists(ctx context.Context, r models.Reflection) (bool, error)
}
