package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/domain"
)

// MarketAPI is the upstream financial-data client consumed by MarketService.
type MarketAPI interface {
	Configured() bool
	History(ctx context.Context, ticker, period string) ([]domain.Candle, error)
	Popular(ctx context.Context) ([]domain.Quote, error)
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
	Quote(ctx context.Context, ticker string) (domain.Quote, error)
}

// MarketService serves stock data with an in-process TTL cache, falling back
// to generated mock data whenever the upstream API fails or is unconfigured.
type MarketService struct {
	api    MarketAPI
	logger *logrus.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func NewMarketService(api MarketAPI, ttl time.Duration, logger *logrus.Logger) *MarketService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MarketService{
		api:    api,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
	}
}

func (s *MarketService) cached(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expires) {
		delete(s.cache, key)
		return nil, false
	}
	return entry.value, true
}

func (s *MarketService) put(key string, value any) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{value: value, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// History returns the OHLCV series for ticker over period.
func (s *MarketService) History(ctx context.Context, ticker, period string) []domain.Candle {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	key := "history:" + ticker + ":" + period
	if v, ok := s.cached(key); ok {
		return v.([]domain.Candle)
	}

	if s.api != nil && s.api.Configured() {
		data, err := s.api.History(ctx, ticker, period)
		if err == nil {
			s.put(key, data)
			return data
		}
		s.logger.WithError(err).WithField("ticker", ticker).Warn("upstream history failed, using mock data")
	}

	data := MockHistory(ticker, period)
	s.put(key, data)
	return data
}

// Popular returns quotes for the popular-ticker set.
func (s *MarketService) Popular(ctx context.Context) []domain.Quote {
	const key = "popular"
	if v, ok := s.cached(key); ok {
		return v.([]domain.Quote)
	}

	if s.api != nil && s.api.Configured() {
		stocks, err := s.api.Popular(ctx)
		if err == nil {
			s.put(key, stocks)
			return stocks
		}
		s.logger.WithError(err).Warn("upstream popular failed, using mock data")
	}

	stocks := MockPopular()
	s.put(key, stocks)
	return stocks
}

// Search looks up tickers by symbol or name. Upstream first; when that yields
// nothing, the popular set is filtered locally.
func (s *MarketService) Search(ctx context.Context, query string) []domain.SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if s.api != nil && s.api.Configured() {
		results, err := s.api.Search(ctx, query)
		if err == nil && len(results) > 0 {
			return results
		}
		if err != nil {
			s.logger.WithError(err).WithField("query", query).Warn("upstream search failed, filtering popular stocks")
		}
	}

	lowered := strings.ToLower(query)
	var filtered []domain.SearchResult
	for _, stock := range s.Popular(ctx) {
		if strings.Contains(strings.ToLower(stock.Symbol), lowered) ||
			strings.Contains(strings.ToLower(stock.Name), lowered) {
			filtered = append(filtered, domain.SearchResult{
				Symbol: stock.Symbol,
				Name:   stock.Name,
				Price:  stock.Price,
			})
		}
		if len(filtered) == 10 {
			break
		}
	}
	return filtered
}

// Quote returns a point-in-time quote for ticker.
func (s *MarketService) Quote(ctx context.Context, ticker string) domain.Quote {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	key := "quote:" + ticker
	if v, ok := s.cached(key); ok {
		return v.(domain.Quote)
	}

	if s.api != nil && s.api.Configured() {
		quote, err := s.api.Quote(ctx, ticker)
		if err == nil {
			s.put(key, quote)
			return quote
		}
		s.logger.WithError(err).WithField("ticker", ticker).Warn("upstream quote failed, using mock data")
	}

	quote := MockQuote(ticker)
	s.put(key, quote)
	return quote
}
