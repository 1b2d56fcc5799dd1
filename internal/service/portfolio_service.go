package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/repository"
)

const (
	portfolioCashBalance    = 25000.0
	portfolioInvestment     = 10000.0
	portfolioDefaultShares  = 10.0
	portfolioMaxHoldings    = 10
	portfolioRecentRunLimit = 20
)

// PortfolioService builds a simulated portfolio out of the user's recorded
// forecast runs: every predicted ticker is treated as a position entered with
// a fixed investment, priced with current quotes. Tickers without runs fall
// back to the popular set so the overview is never empty.
type PortfolioService struct {
	market  *MarketService
	history repository.PredictionRepository
	logger  *logrus.Logger
}

func NewPortfolioService(market *MarketService, history repository.PredictionRepository, logger *logrus.Logger) *PortfolioService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PortfolioService{market: market, history: history, logger: logger}
}

// Overview computes the current holdings, balance and P&L.
func (s *PortfolioService) Overview(ctx context.Context) (*domain.PortfolioOverview, error) {
	var runs []domain.PredictionRun
	if s.history != nil {
		var err error
		runs, err = s.history.ListRecent(ctx, portfolioRecentRunLimit)
		if err != nil {
			s.logger.WithError(err).Warn("list recent prediction runs, building portfolio from popular stocks")
			runs = nil
		}
	}

	tickers := uniqueTickers(runs)
	if len(tickers) == 0 {
		for _, stock := range s.market.Popular(ctx) {
			tickers = append(tickers, stock.Symbol)
			if len(tickers) == 5 {
				break
			}
		}
	}
	if len(tickers) > portfolioMaxHoldings {
		tickers = tickers[:portfolioMaxHoldings]
	}

	overview := &domain.PortfolioOverview{
		CashBalance:     portfolioCashBalance,
		Holdings:        make([]domain.Holding, 0, len(tickers)),
		PredictionCount: len(runs),
	}

	for _, ticker := range tickers {
		quote := s.market.Quote(ctx, ticker)
		if quote.Price <= 0 {
			continue
		}

		latest := latestRunFor(runs, ticker)
		var shares, entryPrice float64
		var predicted *float64
		if latest != nil && len(latest.Predictions) > 0 {
			entryPrice = quote.Price - quote.Change
			if entryPrice <= 0 {
				entryPrice = quote.Price
			}
			shares = portfolioInvestment / entryPrice
			v := latest.Predictions[len(latest.Predictions)-1].PredictedPrice
			predicted = &v
		} else {
			shares = portfolioDefaultShares
			entryPrice = quote.Price
		}

		value := shares * quote.Price
		pl := shares * quote.Change

		overview.Invested += shares * entryPrice
		overview.TotalValue += value
		overview.TodayPL += pl

		overview.Holdings = append(overview.Holdings, domain.Holding{
			Symbol:         ticker,
			Name:           quote.Name,
			Shares:         round2(shares),
			Price:          round2(quote.Price),
			Value:          round2(value),
			Change:         round2(quote.ChangePercent),
			ChangeAmount:   round2(quote.Change),
			EntryPrice:     round2(entryPrice),
			PredictedPrice: predicted,
		})
	}

	overview.TotalBalance = round2(overview.TotalValue + overview.CashBalance)
	if overview.Invested > 0 {
		overview.TotalReturnPercent = round2((overview.TotalValue - overview.Invested) / overview.Invested * 100)
	}
	overview.IsPositive = overview.TodayPL >= 0
	overview.Invested = round2(overview.Invested)
	overview.TotalValue = round2(overview.TotalValue)
	overview.TodayPL = round2(overview.TodayPL)
	return overview, nil
}

// BalanceHistory returns a generated balance progression for the chart.
// Unknown periods fall back to one week.
func (s *PortfolioService) BalanceHistory(period string) []domain.BalancePoint {
	labels := balanceLabels(strings.ToUpper(strings.TrimSpace(period)))
	rng := rand.New(rand.NewSource(mockSeed("portfolio", period)))

	const (
		baseBalance = 140000.0
		floor       = 120000.0
		ceiling     = 160000.0
	)

	balance := baseBalance
	points := make([]domain.BalancePoint, 0, len(labels))
	for _, label := range labels {
		balance += -2000 + rng.Float64()*5000
		if balance < floor {
			balance = floor
		}
		if balance > ceiling {
			balance = ceiling
		}
		points = append(points, domain.BalancePoint{Date: label, Value: round2(balance)})
	}
	return points
}

func balanceLabels(period string) []string {
	switch period {
	case "1D":
		labels := make([]string, 24)
		for i := range labels {
			labels[i] = fmt.Sprintf("%02d:00", i)
		}
		return labels
	case "1M":
		return []string{"Week 1", "Week 2", "Week 3", "Week 4"}
	case "1Y":
		return []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	default:
		return []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	}
}

func uniqueTickers(runs []domain.PredictionRun) []string {
	seen := make(map[string]struct{}, len(runs))
	var tickers []string
	for _, run := range runs {
		ticker := strings.ToUpper(run.Ticker)
		if _, ok := seen[ticker]; ok {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	return tickers
}

// latestRunFor relies on runs being ordered newest first.
func latestRunFor(runs []domain.PredictionRun, ticker string) *domain.PredictionRun {
	for i := range runs {
		if strings.EqualFold(runs[i].Ticker, ticker) {
			return &runs[i]
		}
	}
	return nil
}
