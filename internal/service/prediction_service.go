package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/repository"
)

const (
	defaultForecastDays = 30
	maxForecastDays     = 365
	defaultModelType    = "LSTM"
)

// PredictionService produces demo forecasts (random walk seeded from the
// ticker's recent history) and records every run for the history endpoints.
// There is deliberately no real model behind it.
type PredictionService struct {
	market  *MarketService
	history repository.PredictionRepository
	logger  *logrus.Logger
}

func NewPredictionService(market *MarketService, history repository.PredictionRepository, logger *logrus.Logger) *PredictionService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PredictionService{market: market, history: history, logger: logger}
}

// Predict generates a forecast run and persists it.
func (s *PredictionService) Predict(ctx context.Context, ticker, modelType string, days int) (*domain.PredictionRun, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if modelType == "" {
		modelType = defaultModelType
	}
	if days <= 0 {
		days = defaultForecastDays
	}
	if days > maxForecastDays {
		return nil, fmt.Errorf("days must be at most %d", maxForecastDays)
	}

	base := 100.0
	if recent := s.market.History(ctx, ticker, "1mo"); len(recent) > 0 {
		base = recent[len(recent)-1].Close
	}

	rng := rand.New(rand.NewSource(mockSeed("predict", ticker, modelType)))
	points := make([]domain.PredictedPoint, 0, days)
	price := base
	now := time.Now()
	for i := 0; i < days; i++ {
		price += (-0.05 + rng.Float64()*0.12) * price
		points = append(points, domain.PredictedPoint{
			Date:           now.AddDate(0, 0, i+1).Format("2006-01-02"),
			PredictedPrice: round2(price),
			Confidence:     round2(0.70 + rng.Float64()*0.25),
		})
	}

	run := &domain.PredictionRun{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		ModelType:   modelType,
		Days:        days,
		Predictions: points,
		Metrics: domain.PredictionMetrics{
			RMSE:    0.02 + rng.Float64()*0.03,
			MAE:     0.015 + rng.Float64()*0.025,
			R2Score: 0.85 + rng.Float64()*0.10,
		},
		CreatedAt: time.Now().UTC(),
	}

	if s.history != nil {
		if err := s.history.Create(ctx, run); err != nil {
			// A failed history write must not cost the caller the forecast.
			s.logger.WithError(err).WithField("ticker", ticker).Warn("record prediction run")
		}
	}

	return run, nil
}

// History lists past runs for a ticker, newest first.
func (s *PredictionService) History(ctx context.Context, ticker string, limit int) ([]domain.PredictionRun, error) {
	if s.history == nil {
		return nil, nil
	}
	runs, err := s.history.ListByTicker(ctx, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("list prediction history: %w", err)
	}
	return runs, nil
}
