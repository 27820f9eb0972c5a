package attribution

import (
	"fmt"
	"strconv"
)

// Step is one row of a waterfall. Start and End are cumulative model outputs.
type Step struct {
	Label        string  `json:"label"`
	Feature      string  `json:"feature,omitempty"`
	Slot         int     `json:"slot"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	// Others is the number of features folded into an aggregate row; Slot is -1 then.
	Others int `json:"others,omitempty"`
}

// Waterfall walks from the baseline to the output one feature at a time. Steps are
// ordered top-down, largest contribution first.
type Waterfall struct {
	Baseline float64 `json:"baseline"`
	Output   float64 `json:"output"`
	Steps    []Step  `json:"steps"`
}

// Bar ranks the largest contributions by magnitude.
type Bar struct {
	Bars []Contribution `json:"bars"`
}

// Force splits contributions into the ones pushing the output higher and lower.
type Force struct {
	Baseline float64        `json:"baseline"`
	Output   float64        `json:"output"`
	Higher   []Contribution `json:"higher"`
	Lower    []Contribution `json:"lower"`
}

type Views struct {
	Ranking   []Contribution `json:"ranking"`
	Waterfall Waterfall      `json:"waterfall"`
	Bar       Bar            `json:"bar"`
	Force     Force          `json:"force"`
}

// BuildViews derives all three views from one ranking of set.
func BuildViews(set *Set, maxDisplay int) (*Views, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if maxDisplay <= 0 {
		maxDisplay = DefaultMaxDisplay
	}

	ranked := set.Ranked()
	return &Views{
		Ranking:   ranked,
		Waterfall: buildWaterfall(set, ranked, maxDisplay),
		Bar:       buildBar(ranked, maxDisplay),
		Force:     buildForce(set, ranked),
	}, nil
}

func buildWaterfall(set *Set, ranked []Contribution, maxDisplay int) Waterfall {
	shown := ranked
	var rest []Contribution
	if len(ranked) > maxDisplay {
		shown = ranked[:maxDisplay-1]
		rest = ranked[maxDisplay-1:]
	}

	steps := make([]Step, 0, len(shown)+1)
	for _, c := range shown {
		steps = append(steps, Step{
			Label:        FeatureLabel(c.Feature, c.Value),
			Feature:      c.Feature,
			Slot:         c.Slot,
			Value:        c.Value,
			Contribution: c.Contribution,
		})
	}
	if len(rest) > 0 {
		var sum float64
		for _, c := range rest {
			sum += c.Contribution
		}
		steps = append(steps, Step{
			Label:        fmt.Sprintf("%d other features", len(rest)),
			Slot:         -1,
			Contribution: sum,
			Others:       len(rest),
		})
	}

	// Accumulate bottom-up: the aggregate row sits next to the baseline.
	running := set.Baseline
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i].Start = running
		running += steps[i].Contribution
		steps[i].End = running
	}

	return Waterfall{Baseline: set.Baseline, Output: running, Steps: steps}
}

func buildBar(ranked []Contribution, maxDisplay int) Bar {
	n := min(maxDisplay, len(ranked))
	bars := make([]Contribution, n)
	copy(bars, ranked[:n])
	return Bar{Bars: bars}
}

func buildForce(set *Set, ranked []Contribution) Force {
	f := Force{Baseline: set.Baseline, Output: set.Baseline + set.Sum()}
	for _, c := range ranked {
		switch {
		case c.Contribution > 0:
			f.Higher = append(f.Higher, c)
		case c.Contribution < 0:
			f.Lower = append(f.Lower, c)
		}
	}
	return f
}

// FeatureLabel renders "name = value" with integers shown without decimals.
func FeatureLabel(feature string, value float64) string {
	return feature + " = " + FormatValue(value)
}

func FormatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
