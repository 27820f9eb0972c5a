package models

import "time"

// PredictionRecord is one persisted prediction.
type PredictionRecord struct {
	ID              string    `json:"id"`
	Features        []float64 `json:"features"`
	Department      string    `json:"department"`
	Label           int       `json:"label"`
	Probability     *float64  `json:"probability,omitempty"`
	Baseline        float64   `json:"baseline"`
	Output          float64   `json:"output"`
	TopFeature      string    `json:"top_feature,omitempty"`
	TopContribution float64   `json:"top_contribution"`
	LatencyMS       int       `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
