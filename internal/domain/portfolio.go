package domain

// Holding is one simulated portfolio position.
type Holding struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Shares         float64  `json:"shares"`
	Price          float64  `json:"price"`
	Value          float64  `json:"value"`
	Change         float64  `json:"change"`
	ChangeAmount   float64  `json:"change_amount"`
	EntryPrice     float64  `json:"entry_price"`
	PredictedPrice *float64 `json:"predicted_price"`
}

// PortfolioOverview aggregates the simulated holdings with balance and P&L.
type PortfolioOverview struct {
	TotalBalance       float64   `json:"total_balance"`
	CashBalance        float64   `json:"cash_balance"`
	Invested           float64   `json:"invested"`
	TotalValue         float64   `json:"total_value"`
	TodayPL            float64   `json:"today_pl"`
	TotalReturnPercent float64   `json:"total_return_percent"`
	IsPositive         bool      `json:"is_positive"`
	Holdings           []Holding `json:"holdings"`
	PredictionCount    int       `json:"prediction_count"`
}

// BalancePoint is one sample of the portfolio balance chart.
type BalancePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}
