package repository

import (
	"context"
	"time"

	"stock-dashboard/internal/domain"
)

// PredictionRepository persists forecast runs for the history and portfolio
// endpoints and the archive worker.
type PredictionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, run *domain.PredictionRun) error
	ListByTicker(ctx context.Context, ticker string, limit int) ([]domain.PredictionRun, error)
	ListRecent(ctx context.Context, limit int) ([]domain.PredictionRun, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.PredictionRun, error)
}
