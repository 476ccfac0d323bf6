package diary

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, e models.DiaryEntry) error
	Get(ctx context.Context, dateID string) (*models.DiaryEntry, error)
	// ListRecent returns at most n entries, newest date first.
	ListRecent(ctx context.Context, n int) ([]models.DiaryEntry, error)
	// ListDaysWithText returns at most n date ids whose text is not blank,
	// newest first.
	ListDaysWithText(ctx context.Context, n int) ([]string, error)
}
