package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/attribution"
	"github.com/churn-insight/dashboard/internal/features"
	"github.com/churn-insight/dashboard/internal/inference"
	"github.com/churn-insight/dashboard/internal/model"
	"github.com/churn-insight/dashboard/internal/schema"
	"github.com/churn-insight/dashboard/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type PredictHandler struct {
	service *inference.Service
	schema  *schema.Schema
	model   *model.Info
}

func NewPredictHandler(service *inference.Service, s *schema.Schema, info *model.Info) *PredictHandler {
	return &PredictHandler{
		service: service,
		schema:  s,
		model:   info,
	}
}

type predictResponse struct {
	ID           string                     `json:"id"`
	CreatedAt    time.Time                  `json:"created_at"`
	Label        int                        `json:"label"`
	LabelText    string                     `json:"label_text"`
	Probability  *float64                   `json:"probability,omitempty"`
	Features     []float64                  `json:"features"`
	Baseline     float64                    `json:"baseline"`
	Output       float64                    `json:"output"`
	Link         attribution.Link           `json:"link"`
	Attributions []attribution.Contribution `json:"attributions"`
	Views        predictViews               `json:"views"`
	LatencyMS    int64                      `json:"latency_ms"`
}

type predictViews struct {
	Waterfall attribution.Waterfall `json:"waterfall"`
	Bar       attribution.Bar       `json:"bar"`
	Force     attribution.Force     `json:"force"`
}

// HandlePredict accepts the employee attributes as JSON. Omitted numeric fields
// take the form defaults; department is required.
func (h *PredictHandler) HandlePredict(c *fiber.Ctx) error {
	form := inference.SubmissionForm()
	if err := c.BodyParser(&form); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.service.Predict(c.UserContext(), form)
	if err != nil {
		var verr *inference.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  verr.Error(),
				"fields": verr.Fields,
			})
		case errors.Is(err, features.ErrUnknownCategory):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		logger.Error("Failed to predict", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to predict",
		})
	}

	return c.JSON(predictResponse{
		ID:           result.ID,
		CreatedAt:    result.CreatedAt,
		Label:        result.Label,
		LabelText:    result.LabelText,
		Probability:  result.Probability,
		Features:     result.Vector,
		Baseline:     result.Attribution.Baseline,
		Output:       result.Attribution.Output,
		Link:         result.Attribution.Link,
		Attributions: result.Views.Ranking,
		Views: predictViews{
			Waterfall: result.Views.Waterfall,
			Bar:       result.Views.Bar,
			Force:     result.Views.Force,
		},
		LatencyMS: result.Latency.Milliseconds(),
	})
}

func (h *PredictHandler) GetPredictionHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 200",
		})
	}

	records, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		if errors.Is(err, inference.ErrHistoryDisabled) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prediction history is disabled",
			})
		}
		logger.Error("Failed to load prediction history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load prediction history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}

func (h *PredictHandler) GetPredictionSummary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		if errors.Is(err, inference.ErrHistoryDisabled) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Prediction history is disabled",
			})
		}
		logger.Error("Failed to summarize prediction history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to summarize prediction history",
		})
	}

	return c.JSON(fiber.Map{
		"by_label": summary,
	})
}

func (h *PredictHandler) GetSchema(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"schema":               h.schema,
		"model":                h.model,
		"supports_probability": h.service.SupportsProbability(),
	})
}
