package domain

import "time"

// PredictedPoint is one forecast day.
type PredictedPoint struct {
	Date           string  `json:"date"`
	PredictedPrice float64 `json:"predicted_price"`
	Confidence     float64 `json:"confidence"`
}

// PredictionMetrics are the reported model performance numbers.
type PredictionMetrics struct {
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	R2Score float64 `json:"r2_score"`
}

// PredictionRun records one forecast request and its outcome.
type PredictionRun struct {
	ID          string
	Ticker      string
	ModelType   string
	Days        int
	Predictions []PredictedPoint
	Metrics     PredictionMetrics
	CreatedAt   time.Time
}
