// Package model defines the classifier capabilities the dashboard depends on and
// ships a tree-ensemble implementation loaded from a JSON artifact.
package model

import (
	"errors"

	"github.com/churn-insight/dashboard/internal/attribution"
	"github.com/churn-insight/dashboard/internal/features"
)

var (
	ErrArtifactNotFound       = errors.New("model artifact not found")
	ErrIncompatibleArtifact   = errors.New("incompatible model artifact")
	ErrProbabilityUnsupported = errors.New("model does not support probability estimates")
)

const (
	LabelStay  = 0
	LabelLeave = 1
)

// Predictor returns a discrete label in {0, 1} for one row.
type Predictor interface {
	Predict(v features.Vector) (int, error)
}

// ProbabilityPredictor is implemented by models that expose class probabilities,
// ordered [P(stay), P(leave)].
type ProbabilityPredictor interface {
	PredictProba(v features.Vector) ([2]float64, error)
}

// Explainer attributes a single prediction to its input slots.
type Explainer interface {
	Explain(v features.Vector) (*attribution.Set, error)
}

// Info describes a loaded artifact.
type Info struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Objective string   `json:"objective"`
	Trees     int      `json:"trees"`
	Features  []string `json:"features"`
	Path      string   `json:"path"`
}

// SupportsProbability reports whether p can produce probability estimates.
// Implementations may opt out at runtime with a SupportsProbability method.
func SupportsProbability(p Predictor) bool {
	if _, ok := p.(ProbabilityPredictor); !ok {
		return false
	}
	if s, ok := p.(interface{ SupportsProbability() bool }); ok {
		return s.SupportsProbability()
	}
	return true
}
