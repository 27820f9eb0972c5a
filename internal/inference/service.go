// Package inference runs the prediction flow: validate the form, assemble the
// feature vector, predict, explain and record the outcome.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/attribution"
	"github.com/churn-insight/dashboard/internal/features"
	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/internal/model"
	"github.com/churn-insight/dashboard/internal/storage/models"
	"github.com/churn-insight/dashboard/pkg/logger"
)

var (
	ErrHistoryDisabled = errors.New("prediction history is disabled")
	ErrNoExplainer     = errors.New("no explainer configured")
)

// HistoryStore persists served predictions.
type HistoryStore interface {
	InsertPrediction(ctx context.Context, record *models.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	CountByLabel(ctx context.Context) (map[int]int, error)
}

type Result struct {
	ID          string
	CreatedAt   time.Time
	Form        Form
	Vector      features.Vector
	Label       int
	LabelText   string
	Probability *float64
	Attribution *attribution.Set
	Views       *attribution.Views
	Latency     time.Duration
}

func LabelText(label int) string {
	if label == model.LabelLeave {
		return "likely to leave"
	}
	return "likely to stay"
}

type Options struct {
	// MaxDisplay caps the waterfall and bar views. Zero means
	// attribution.DefaultMaxDisplay.
	MaxDisplay int
	History    HistoryStore
}

type Service struct {
	assembler  *features.Assembler
	predictor  model.Predictor
	explainer  model.Explainer
	history    HistoryStore
	maxDisplay int
	log        *zap.Logger
}

// NewService wires the flow. When explainer is nil the predictor is used if it
// also implements model.Explainer.
func NewService(assembler *features.Assembler, predictor model.Predictor, explainer model.Explainer, opts Options) (*Service, error) {
	if predictor == nil {
		return nil, errors.New("inference: predictor is required")
	}
	if explainer == nil {
		e, ok := predictor.(model.Explainer)
		if !ok {
			return nil, ErrNoExplainer
		}
		explainer = e
	}
	if assembler == nil {
		assembler = features.Default
	}
	if opts.MaxDisplay <= 0 {
		opts.MaxDisplay = attribution.DefaultMaxDisplay
	}

	return &Service{
		assembler:  assembler,
		predictor:  predictor,
		explainer:  explainer,
		history:    opts.History,
		maxDisplay: opts.MaxDisplay,
		log:        logger.Named("inference"),
	}, nil
}

// SupportsProbability reports whether results will carry P(leave).
func (s *Service) SupportsProbability() bool {
	return model.SupportsProbability(s.predictor)
}

func (s *Service) Predict(ctx context.Context, form Form) (*Result, error) {
	start := time.Now()

	if err := form.Validate(); err != nil {
		metrics.PredictionErrors.WithLabelValues("validation").Inc()
		return nil, err
	}

	vector, err := s.assembler.Assemble(form.Attributes())
	if err != nil {
		metrics.PredictionErrors.WithLabelValues("assemble").Inc()
		return nil, err
	}

	label, err := s.predictor.Predict(vector)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues("predict").Inc()
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	var probability *float64
	if pp, ok := s.predictor.(model.ProbabilityPredictor); ok && s.SupportsProbability() {
		proba, err := pp.PredictProba(vector)
		if err != nil {
			metrics.PredictionErrors.WithLabelValues("predict").Inc()
			return nil, fmt.Errorf("probability estimate failed: %w", err)
		}
		p := proba[model.LabelLeave]
		probability = &p
		metrics.LeaveProbability.Observe(p)
	}

	set, err := s.explainer.Explain(vector)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues("explain").Inc()
		return nil, fmt.Errorf("attribution failed: %w", err)
	}
	views, err := attribution.BuildViews(set, s.maxDisplay)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues("explain").Inc()
		return nil, fmt.Errorf("attribution views failed: %w", err)
	}

	result := &Result{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Form:        form,
		Vector:      vector,
		Label:       label,
		LabelText:   LabelText(label),
		Probability: probability,
		Attribution: set,
		Views:       views,
		Latency:     time.Since(start),
	}

	metrics.PredictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
	metrics.PredictionDuration.Observe(result.Latency.Seconds())

	s.record(ctx, result)

	s.log.Info("Prediction served",
		zap.String("prediction_id", result.ID),
		zap.Int("label", label),
		zap.String("department", form.Department),
		zap.Duration("latency", result.Latency),
	)

	return result, nil
}

// record persists result. Failures are logged and never surface to the caller.
func (s *Service) record(ctx context.Context, result *Result) {
	if s.history == nil {
		return
	}

	rec := &models.PredictionRecord{
		ID:          result.ID,
		Features:    result.Vector,
		Department:  s.assembler.Department(result.Vector),
		Label:       result.Label,
		Probability: result.Probability,
		Baseline:    result.Attribution.Baseline,
		Output:      result.Attribution.Output,
		LatencyMS:   int(result.Latency.Milliseconds()),
		CreatedAt:   result.CreatedAt,
	}
	if top := result.Attribution.Top(1); len(top) > 0 {
		rec.TopFeature = top[0].Feature
		rec.TopContribution = top[0].Contribution
	}

	if err := s.history.InsertPrediction(ctx, rec); err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		s.log.Warn("Failed to record prediction", zap.String("prediction_id", result.ID), zap.Error(err))
		return
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()
}

// History returns up to limit of the most recent recorded predictions.
func (s *Service) History(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.RecentPredictions(ctx, limit)
}

// Summary counts recorded predictions by label text.
func (s *Service) Summary(ctx context.Context) (map[string]int, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	counts, err := s.history.CountByLabel(ctx)
	if err != nil {
		return nil, err
	}

	out := map[string]int{
		LabelText(model.LabelStay):  0,
		LabelText(model.LabelLeave): 0,
	}
	for label, n := range counts {
		out[LabelText(label)] += n
	}
	return out, nil
}
