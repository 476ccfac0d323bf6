package outbox

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, op models.OutboxOperation) error
	Get(ctx context.Context, id string) (*models.OutboxOperation, error)
	ListPending(ctx context.Context, limit int) ([]models.OutboxOperation, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.OutboxOperation, error)
	ListUnreplacedFailed(ctx context.Context, limit int) ([]models.OutboxOperation, error)
	Latest(ctx context.Context, typ models.OperationType, keyRef string) (*models.OutboxOperation, error)
	MarkReplaced(ctx context.Context, id, by string) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, retries int) error
	CountPending(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
}
