package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_predictions_total",
			Help: "Predictions served, by predicted label",
		},
		[]string{"label"},
	)

	PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_prediction_errors_total",
			Help: "Rejected or failed prediction requests",
		},
		[]string{"reason"},
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "churn_dashboard_prediction_duration_seconds",
			Help:    "Assemble, predict and explain duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	LeaveProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "churn_dashboard_leave_probability",
			Help:    "Distribution of predicted probability of leaving",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	NotebookRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_notebook_renders_total",
			Help: "Notebook selections, by outcome",
		},
		[]string{"status"},
	)

	NotebookConversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "churn_dashboard_notebook_conversion_duration_seconds",
			Help:    "Notebook to HTML conversion duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_cache_hits_total",
			Help: "Notebook markup cache hits",
		},
		[]string{"layer"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_cache_misses_total",
			Help: "Notebook markup cache misses",
		},
		[]string{"layer"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "churn_dashboard_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	HistoryWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_dashboard_history_writes_total",
			Help: "Prediction history writes, by outcome",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PredictionsTotal)
		prometheus.MustRegister(PredictionErrors)
		prometheus.MustRegister(PredictionDuration)
		prometheus.MustRegister(LeaveProbability)
		prometheus.MustRegister(NotebookRenders)
		prometheus.MustRegister(NotebookConversionDuration)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(CircuitState)
		prometheus.MustRegister(HistoryWrites)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
