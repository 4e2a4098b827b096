package domain

import "time"

// Forecast 一次天气预报观测
type Forecast struct {
	City       string    `json:"city"`
	Type       string    `json:"type"`        // "high" 或 "low"
	TargetDate string    `json:"target_date"` // YYYY-MM-DD
	Temp       float64   `json:"forecast_temp"`
	MinTemp    float64   `json:"min_temp"`
	MaxTemp    float64   `json:"max_temp"`
	Hourly     []float64 `json:"hourly_temps,omitempty"`
	Source     string    `json:"source"` // 预报来源，例如 "nws"
	ObservedAt time.Time `json:"timestamp"`
}
