package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/repository"
)

const createPredictionsTable = `
CREATE TABLE IF NOT EXISTS prediction_runs (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	model_type TEXT NOT NULL,
	days INTEGER NOT NULL,
	predictions TEXT NOT NULL,
	rmse REAL NOT NULL,
	mae REAL NOT NULL,
	r2_score REAL NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prediction_runs_ticker ON prediction_runs (ticker, created_at);
`

// PredictionRepository stores forecast runs with the per-day points encoded
// as a JSON column; runs are read back whole, never point by point.
type PredictionRepository struct {
	db *sql.DB
}

func NewPredictionRepository(db *sql.DB) repository.PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPredictionsTable); err != nil {
		return fmt.Errorf("create prediction_runs table: %w", err)
	}
	return nil
}

func (r *PredictionRepository) Create(ctx context.Context, run *domain.PredictionRun) error {
	points, err := json.Marshal(run.Predictions)
	if err != nil {
		return fmt.Errorf("encode predictions: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO prediction_runs (id, ticker, model_type, days, predictions, rmse, mae, r2_score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		strings.ToUpper(run.Ticker),
		run.ModelType,
		run.Days,
		string(points),
		run.Metrics.RMSE,
		run.Metrics.MAE,
		run.Metrics.R2Score,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction run: %w", err)
	}
	return nil
}

func (r *PredictionRepository) ListByTicker(ctx context.Context, ticker string, limit int) ([]domain.PredictionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticker, model_type, days, predictions, rmse, mae, r2_score, created_at
FROM prediction_runs
WHERE ticker = ?
ORDER BY created_at DESC
LIMIT ?`,
		strings.ToUpper(ticker),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query prediction runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]domain.PredictionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticker, model_type, days, predictions, rmse, mae, r2_score, created_at
FROM prediction_runs
ORDER BY created_at DESC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query prediction runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *PredictionRepository) ListSince(ctx context.Context, since time.Time) ([]domain.PredictionRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticker, model_type, days, predictions, rmse, mae, r2_score, created_at
FROM prediction_runs
WHERE created_at >= ?
ORDER BY created_at ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query prediction runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]domain.PredictionRun, error) {
	var runs []domain.PredictionRun
	for rows.Next() {
		var run domain.PredictionRun
		var points string
		if err := rows.Scan(
			&run.ID,
			&run.Ticker,
			&run.ModelType,
			&run.Days,
			&points,
			&run.Metrics.RMSE,
			&run.Metrics.MAE,
			&run.Metrics.R2Score,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction run: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &run.Predictions); err != nil {
			return nil, fmt.Errorf("decode predictions: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction runs: %w", err)
	}
	return runs, nil
}
