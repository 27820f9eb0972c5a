// Package attribution holds per-feature contribution sets and the views derived
// from them. Every view is computed from one shared ranking so they cannot
// disagree on order or values.
package attribution

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultMaxDisplay is the number of features shown by the ranked views.
const DefaultMaxDisplay = 10

var ErrMisaligned = errors.New("attribution set is misaligned")

// Link names the output space the contributions are expressed in.
type Link string

const (
	LinkIdentity Link = "identity"
	LinkLogit    Link = "logit"
)

// Set explains a single prediction. Contributions, Values and FeatureNames are
// aligned by slot, and Baseline + sum(Contributions) equals Output.
type Set struct {
	FeatureNames  []string  `json:"feature_names"`
	Values        []float64 `json:"values"`
	Contributions []float64 `json:"contributions"`
	Baseline      float64   `json:"baseline"`
	Output        float64   `json:"output"`
	Link          Link      `json:"link"`
}

// Contribution is one feature's entry in a ranking.
type Contribution struct {
	Slot         int     `json:"slot"`
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

func (s *Set) Validate() error {
	n := len(s.FeatureNames)
	if len(s.Contributions) != n || len(s.Values) != n {
		return fmt.Errorf("%w: %d names, %d values, %d contributions",
			ErrMisaligned, n, len(s.Values), len(s.Contributions))
	}
	return nil
}

// Sum returns the total contribution across all slots.
func (s *Set) Sum() float64 {
	var total float64
	for _, c := range s.Contributions {
		total += c
	}
	return total
}

// Ranked orders every slot by descending absolute contribution. Ties keep slot
// order so the ranking is deterministic.
func (s *Set) Ranked() []Contribution {
	out := make([]Contribution, len(s.Contributions))
	for i, c := range s.Contributions {
		out[i] = Contribution{Slot: i, Feature: s.FeatureNames[i], Value: s.Values[i], Contribution: c}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Contribution) > math.Abs(out[b].Contribution)
	})
	return out
}

// Top returns the first n entries of Ranked.
func (s *Set) Top(n int) []Contribution {
	ranked := s.Ranked()
	if n > 0 && n < len(ranked) {
		return ranked[:n]
	}
	return ranked
}
