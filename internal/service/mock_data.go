package service

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"stock-dashboard/internal/domain"
)

// Mock market data, used whenever the upstream market API is unavailable or
// unconfigured. Series are generated with a per-ticker seeded random walk so
// repeated calls for the same ticker stay consistent within a day.

var periodDays = map[string]int{
	"1d": 1, "5d": 5, "1mo": 30, "3mo": 90,
	"6mo": 180, "1y": 252, "2y": 504, "5y": 1260, "max": 2520,
}

var mockBasePrices = map[string]float64{
	"AAPL": 150.0, "GOOGL": 2800.0, "MSFT": 350.0,
	"TSLA": 250.0, "AMZN": 3400.0, "META": 320.0,
	"NVDA": 220.0, "NFLX": 400.0, "BABA": 90.0, "CRM": 200.0,
}

var popularTickers = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX"}

// PeriodToDays maps a history period to its trading-day count; unknown
// periods default to one year.
func PeriodToDays(period string) int {
	if days, ok := periodDays[strings.ToLower(period)]; ok {
		return days
	}
	return 252
}

func mockSeed(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	h.Write([]byte(time.Now().UTC().Format("2006-01-02")))
	return int64(h.Sum64())
}

// MockHistory generates an OHLCV random-walk series for the ticker.
func MockHistory(ticker, period string) []domain.Candle {
	days := PeriodToDays(period)
	rng := rand.New(rand.NewSource(mockSeed("history", ticker, period)))

	price, ok := mockBasePrices[ticker]
	if !ok {
		price = 100.0
	}
	trend := rng.NormFloat64()*0.002 + 0.0001
	const volatility = 0.02

	data := make([]domain.Candle, 0, days)
	now := time.Now()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -(days - i - 1))
		price *= 1 + rng.NormFloat64()*volatility + trend
		price = math.Max(price, 1.0)

		high := price * (1 + math.Abs(rng.NormFloat64()*0.01))
		low := price * (1 - math.Abs(rng.NormFloat64()*0.01))
		open := low + (high-low)*rng.Float64()

		data = append(data, domain.Candle{
			Date:   date.Format("2006-01-02"),
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(price),
			Volume: int64(1_000_000 + rng.Intn(9_000_000)),
		})
	}
	return data
}

// MockPopular generates quotes for the fixed popular-ticker set.
func MockPopular() []domain.Quote {
	rng := rand.New(rand.NewSource(mockSeed("popular")))
	stocks := make([]domain.Quote, 0, len(popularTickers))
	for _, ticker := range popularTickers {
		price := 50 + rng.Float64()*250
		change := -10 + rng.Float64()*20
		stocks = append(stocks, domain.Quote{
			Symbol:        ticker,
			Name:          fmt.Sprintf("%s Inc.", ticker),
			Price:         round2(price),
			Change:        round2(change),
			ChangePercent: round2(change / price * 100),
			Volume:        int64(1_000_000 + rng.Intn(49_000_000)),
		})
	}
	return stocks
}

// MockQuote generates a single quote consistent with MockHistory's last close.
func MockQuote(ticker string) domain.Quote {
	history := MockHistory(ticker, "5d")
	last := history[len(history)-1]
	prev := history[len(history)-2]
	change := last.Close - prev.Close
	return domain.Quote{
		Symbol:        ticker,
		Name:          fmt.Sprintf("%s Inc.", ticker),
		Price:         last.Close,
		Change:        round2(change),
		ChangePercent: round2(change / prev.Close * 100),
		Volume:        last.Volume,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
