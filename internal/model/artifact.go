package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/schema"
	"github.com/churn-insight/dashboard/pkg/logger"
)

const (
	ObjectiveLogistic = "binary:logistic"
	ObjectiveHinge    = "binary:hinge"
)

// artifact is the on-disk format: metadata plus trees in the nested layout
// produced by an XGBoost JSON dump.
type artifact struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Objective    string     `json:"objective"`
	BaseMargin   float64    `json:"base_margin"`
	FeatureNames []string   `json:"feature_names"`
	Trees        []dumpNode `json:"trees"`
}

type dumpNode struct {
	NodeID         int        `json:"nodeid"`
	Split          string     `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition,omitempty"`
	Yes            int        `json:"yes,omitempty"`
	No             int        `json:"no,omitempty"`
	Missing        int        `json:"missing,omitempty"`
	Cover          float64    `json:"cover"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Children       []dumpNode `json:"children,omitempty"`
}

// Load reads a tree-ensemble artifact and checks it against s.
func Load(path string, s *schema.Schema) (*TreeEnsemble, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, abs)
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleArtifact, err)
	}

	ens, err := build(&a, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleArtifact, err)
	}
	ens.info.Path = abs

	logger.Info("Model artifact loaded",
		zap.String("path", abs),
		zap.String("name", a.Name),
		zap.String("objective", a.Objective),
		zap.Int("trees", len(ens.trees)),
	)

	return ens, nil
}

func build(a *artifact, s *schema.Schema) (*TreeEnsemble, error) {
	switch a.Objective {
	case ObjectiveLogistic, ObjectiveHinge:
	default:
		return nil, fmt.Errorf("unsupported objective %q", a.Objective)
	}
	if err := s.CheckColumns(a.FeatureNames); err != nil {
		return nil, err
	}
	if len(a.Trees) == 0 {
		return nil, errors.New("artifact has no trees")
	}

	index := make(map[string]int, len(a.FeatureNames))
	for i, name := range a.FeatureNames {
		index[name] = i
	}

	ens := &TreeEnsemble{
		objective:    a.Objective,
		baseMargin:   a.BaseMargin,
		featureNames: append([]string(nil), a.FeatureNames...),
		info: Info{
			Name:      a.Name,
			Version:   a.Version,
			Objective: a.Objective,
			Trees:     len(a.Trees),
			Features:  append([]string(nil), a.FeatureNames...),
		},
	}

	for i := range a.Trees {
		t := &tree{}
		if _, err := t.add(&a.Trees[i], index); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		t.normalizeCover(0)
		ens.trees = append(ens.trees, t)
	}
	return ens, nil
}

func resolveFeature(split string, index map[string]int) (int, error) {
	if i, ok := index[split]; ok {
		return i, nil
	}
	if strings.HasPrefix(split, "f") {
		if i, err := strconv.Atoi(split[1:]); err == nil && i >= 0 && i < len(index) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}
