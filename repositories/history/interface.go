package history

import (
	"context"

	"flux_comfy_bot/entities"
)

type Repository interface {
	Create(ctx context.Context, entry *entities.HistoryEntry) (*entities.HistoryEntry, error)
	GetByRequest(ctx context.Context, requestID string) (*entities.HistoryEntry, error)
	GetByMessage(ctx context.Context, messageID string) (*entities.HistoryEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]entities.HistoryEntry, error)
}
