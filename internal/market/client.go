// Package market wraps the upstream financial-data API (a RapidAPI-hosted
// Yahoo Finance proxy). Every call enforces the configured timeout; callers
// treat any error here as a signal to fall back to mock data.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stock-dashboard/internal/domain"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("market api key not configured")

// Config describes the upstream endpoint and credentials.
type Config struct {
	BaseURL string
	Host    string
	APIKey  string
	Timeout time.Duration
}

// Client is the upstream market-data client.
type Client struct {
	http   *resty.Client
	apiKey string
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("X-RapidAPI-Host", cfg.Host).
			SetHeader("X-RapidAPI-Key", cfg.APIKey),
		apiKey: cfg.APIKey,
	}
}

// Configured reports whether the client has an API key to present upstream.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type historyResponse struct {
	Symbol string          `json:"symbol"`
	Data   []domain.Candle `json:"data"`
}

type popularResponse struct {
	Stocks []domain.Quote `json:"stocks"`
}

type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
}

// History fetches the OHLCV series for ticker over the given period.
func (c *Client) History(ctx context.Context, ticker, period string) ([]domain.Candle, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out historyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": ticker, "period": period}).
		SetResult(&out).
		Get("/stock/history")
	if err != nil {
		return nil, fmt.Errorf("market history: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market history failed with status %d", resp.StatusCode())
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("market history returned no data for %s", ticker)
	}
	return out.Data, nil
}

// Popular fetches the current quotes for the market's popular tickers.
func (c *Client) Popular(ctx context.Context) ([]domain.Quote, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out popularResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/market/popular")
	if err != nil {
		return nil, fmt.Errorf("market popular: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market popular failed with status %d", resp.StatusCode())
	}
	if len(out.Stocks) == 0 {
		return nil, fmt.Errorf("market popular returned no data")
	}
	return out.Stocks, nil
}

// Search looks tickers up by symbol or company name.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&out).
		Get("/stock/search")
	if err != nil {
		return nil, fmt.Errorf("market search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market search failed with status %d", resp.StatusCode())
	}
	return out.Results, nil
}

// Quote fetches the real-time quote for one ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (domain.Quote, error) {
	if !c.Configured() {
		return domain.Quote{}, ErrNotConfigured
	}
	var out domain.Quote
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/stock/quote/" + ticker)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market quote: %w", err)
	}
	if resp.IsError() {
		return domain.Quote{}, fmt.Errorf("market quote failed with status %d", resp.StatusCode())
	}
	if out.Symbol == "" {
		return domain.Quote{}, fmt.Errorf("market quote returned no data for %s", ticker)
	}
	return out, nil
}
