package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-dashboard/internal/domain"
)

func newPortfolioService(repo *memPredictionRepo) *PortfolioService {
	market := NewMarketService(&fakeMarketAPI{}, time.Minute, quietLogger())
	if repo == nil {
		return NewPortfolioService(market, nil, quietLogger())
	}
	return NewPortfolioService(market, repo, quietLogger())
}

func TestOverviewWithoutRunsUsesPopularStocks(t *testing.T) {
	svc := newPortfolioService(nil)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, overview.Holdings, 5)
	assert.Equal(t, 0, overview.PredictionCount)
	assert.Equal(t, 25000.0, overview.CashBalance)
	assert.Greater(t, overview.Invested, 0.0)
	assert.Equal(t, overview.TotalBalance, round2(overview.TotalValue+overview.CashBalance))

	for _, holding := range overview.Holdings {
		assert.Equal(t, 10.0, holding.Shares)
		assert.Equal(t, holding.Price, holding.EntryPrice)
		assert.Nil(t, holding.PredictedPrice)
	}
}

func TestOverviewBuildsHoldingsFromRuns(t *testing.T) {
	repo := &memPredictionRepo{runs: []domain.PredictionRun{
		{
			ID:     "run-1",
			Ticker: "AAPL",
			Predictions: []domain.PredictedPoint{
				{Date: "2026-08-24", PredictedPrice: 155.0},
				{Date: "2026-08-25", PredictedPrice: 158.5},
			},
			CreatedAt: time.Now().UTC(),
		},
	}}
	svc := newPortfolioService(repo)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, overview.Holdings, 1)
	assert.Equal(t, 1, overview.PredictionCount)

	holding := overview.Holdings[0]
	assert.Equal(t, "AAPL", holding.Symbol)
	require.NotNil(t, holding.PredictedPrice)
	assert.Equal(t, 158.5, *holding.PredictedPrice)
	assert.Greater(t, holding.Shares, 0.0)
	// Fixed investment, so shares track the entry price.
	assert.InDelta(t, 10000.0, holding.Shares*holding.EntryPrice, 100.0)
}

func TestOverviewDeduplicatesTickers(t *testing.T) {
	repo := &memPredictionRepo{runs: []domain.PredictionRun{
		{ID: "run-1", Ticker: "TSLA", CreatedAt: time.Now().UTC()},
		{ID: "run-2", Ticker: "tsla", CreatedAt: time.Now().UTC()},
		{ID: "run-3", Ticker: "MSFT", CreatedAt: time.Now().UTC()},
	}}
	svc := newPortfolioService(repo)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Len(t, overview.Holdings, 2)
	assert.Equal(t, 3, overview.PredictionCount)
}

func TestBalanceHistoryPeriods(t *testing.T) {
	svc := newPortfolioService(nil)

	week := svc.BalanceHistory("1W")
	require.Len(t, week, 7)
	assert.Equal(t, "Mon", week[0].Date)

	day := svc.BalanceHistory("1d")
	require.Len(t, day, 24)
	assert.Equal(t, "00:00", day[0].Date)

	year := svc.BalanceHistory("1Y")
	require.Len(t, year, 12)
	assert.Equal(t, "Jan", year[0].Date)

	unknown := svc.BalanceHistory("3mo")
	assert.Len(t, unknown, 7)

	for _, point := range week {
		assert.GreaterOrEqual(t, point.Value, 120000.0)
		assert.LessOrEqual(t, point.Value, 160000.0)
	}
}

func TestBenchmarkReport(t *testing.T) {
	svc := NewBenchmarkService(&fakeMarketAPI{configured: true})

	report := svc.Benchmarks()
	require.Contains(t, report.Benchmarks, "lstm")
	require.Contains(t, report.Benchmarks, "rnn")
	assert.Equal(t, "LSTM", report.Comparison["best_accuracy"])

	metrics := svc.Metrics()
	assert.Equal(t, "connected", metrics.APIStatus)
	assert.True(t, metrics.MarketConfigured)

	unconfigured := NewBenchmarkService(nil).Metrics()
	assert.Equal(t, "not_configured", unconfigured.APIStatus)
	assert.Equal(t, "online", unconfigured.SystemStatus)
}
