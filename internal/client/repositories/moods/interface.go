package moods

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, m models.MoodLog) error
	Get(ctx context.Context, dateID string) (*models.MoodLog, error)
	ListRecent(ctx context.Context, n int) ([]models.MoodLog, error)
}
