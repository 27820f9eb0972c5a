package model

import (
	"fmt"
	"math"

	"github.com/churn-insight/dashboard/internal/attribution"
	"github.com/churn-insight/dashboard/internal/features"
)

// tree stores one regression tree in flat arrays. Node 0 is the root; leaves
// have left == -1.
type tree struct {
	feature     []int
	threshold   []float64
	left        []int
	right       []int
	missingLeft []bool
	cover       []float64
	value       []float64
}

func (t *tree) isLeaf(node int) bool { return t.left[node] < 0 }

func (t *tree) add(n *dumpNode, index map[string]int) (int, error) {
	id := len(t.left)
	t.feature = append(t.feature, -1)
	t.threshold = append(t.threshold, 0)
	t.left = append(t.left, -1)
	t.right = append(t.right, -1)
	t.missingLeft = append(t.missingLeft, true)
	t.cover = append(t.cover, n.Cover)
	t.value = append(t.value, 0)

	if n.Leaf != nil {
		if len(n.Children) != 0 {
			return 0, fmt.Errorf("node %d: leaf with children", n.NodeID)
		}
		if n.Cover <= 0 {
			return 0, fmt.Errorf("node %d: non-positive cover", n.NodeID)
		}
		t.value[id] = *n.Leaf
		return id, nil
	}

	if len(n.Children) != 2 {
		return 0, fmt.Errorf("node %d: split needs 2 children, has %d", n.NodeID, len(n.Children))
	}
	feat, err := resolveFeature(n.Split, index)
	if err != nil {
		return 0, fmt.Errorf("node %d: %w", n.NodeID, err)
	}

	var yes, no *dumpNode
	for i := range n.Children {
		switch n.Children[i].NodeID {
		case n.Yes:
			yes = &n.Children[i]
		case n.No:
			no = &n.Children[i]
		}
	}
	if yes == nil || no == nil || n.Yes == n.No {
		return 0, fmt.Errorf("node %d: children do not match yes=%d no=%d", n.NodeID, n.Yes, n.No)
	}
	if n.Missing != n.Yes && n.Missing != n.No {
		return 0, fmt.Errorf("node %d: missing branch %d is not a child", n.NodeID, n.Missing)
	}

	t.feature[id] = feat
	t.threshold[id] = n.SplitCondition
	t.missingLeft[id] = n.Missing == n.Yes

	l, err := t.add(yes, index)
	if err != nil {
		return 0, err
	}
	r, err := t.add(no, index)
	if err != nil {
		return 0, err
	}
	t.left[id] = l
	t.right[id] = r
	return id, nil
}

// normalizeCover makes every split's cover the sum of its children's, so child
// fractions add up to one. Dumped covers are rounded and may drift.
func (t *tree) normalizeCover(node int) float64 {
	if t.isLeaf(node) {
		return t.cover[node]
	}
	t.cover[node] = t.normalizeCover(t.left[node]) + t.normalizeCover(t.right[node])
	return t.cover[node]
}

func (t *tree) next(node int, x []float64) (hot, cold int) {
	v := x[t.feature[node]]
	goLeft := v < t.threshold[node]
	if math.IsNaN(v) {
		goLeft = t.missingLeft[node]
	}
	if goLeft {
		return t.left[node], t.right[node]
	}
	return t.right[node], t.left[node]
}

func (t *tree) predict(x []float64) float64 {
	node := 0
	for !t.isLeaf(node) {
		node, _ = t.next(node, x)
	}
	return t.value[node]
}

// expected is the cover-weighted mean leaf value below node.
func (t *tree) expected(node int) float64 {
	if t.isLeaf(node) {
		return t.value[node]
	}
	l, r := t.left[node], t.right[node]
	return (t.cover[l]*t.expected(l) + t.cover[r]*t.expected(r)) / t.cover[node]
}

// TreeEnsemble is an additive ensemble of regression trees with a logistic or
// hinge output.
type TreeEnsemble struct {
	objective    string
	baseMargin   float64
	featureNames []string
	trees        []*tree
	info         Info
}

func (e *TreeEnsemble) Info() Info { return e.info }

func (e *TreeEnsemble) check(v features.Vector) error {
	if len(v) != len(e.featureNames) {
		return fmt.Errorf("%w: got %d columns, model expects %d",
			features.ErrVectorShape, len(v), len(e.featureNames))
	}
	return nil
}

// Margin is the raw additive score before the output transform.
func (e *TreeEnsemble) Margin(v features.Vector) (float64, error) {
	if err := e.check(v); err != nil {
		return 0, err
	}
	margin := e.baseMargin
	for _, t := range e.trees {
		margin += t.predict(v)
	}
	return margin, nil
}

func (e *TreeEnsemble) Predict(v features.Vector) (int, error) {
	margin, err := e.Margin(v)
	if err != nil {
		return 0, err
	}
	if e.objective == ObjectiveLogistic {
		if sigmoid(margin) >= 0.5 {
			return LabelLeave, nil
		}
		return LabelStay, nil
	}
	if margin > 0 {
		return LabelLeave, nil
	}
	return LabelStay, nil
}

func (e *TreeEnsemble) PredictProba(v features.Vector) ([2]float64, error) {
	if e.objective != ObjectiveLogistic {
		return [2]float64{}, ErrProbabilityUnsupported
	}
	margin, err := e.Margin(v)
	if err != nil {
		return [2]float64{}, err
	}
	p := sigmoid(margin)
	return [2]float64{1 - p, p}, nil
}

// SupportsProbability is false for hinge models.
func (e *TreeEnsemble) SupportsProbability() bool {
	return e.objective == ObjectiveLogistic
}

// ExpectedValue is the baseline margin over the training distribution implied by
// the node covers.
func (e *TreeEnsemble) ExpectedValue() float64 {
	ev := e.baseMargin
	for _, t := range e.trees {
		ev += t.expected(0)
	}
	return ev
}

// Explain computes exact TreeSHAP values in margin space.
func (e *TreeEnsemble) Explain(v features.Vector) (*attribution.Set, error) {
	if err := e.check(v); err != nil {
		return nil, err
	}

	phi := make([]float64, len(v))
	for _, t := range e.trees {
		t.shap(v, phi, 0, nil, 1, 1, -1)
	}

	output, err := e.Margin(v)
	if err != nil {
		return nil, err
	}

	link := attribution.LinkIdentity
	if e.objective == ObjectiveLogistic {
		link = attribution.LinkLogit
	}

	set := &attribution.Set{
		FeatureNames:  append([]string(nil), e.featureNames...),
		Values:        append([]float64(nil), v...),
		Contributions: phi,
		Baseline:      e.ExpectedValue(),
		Output:        output,
		Link:          link,
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
