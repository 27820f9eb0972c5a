package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/churn-insight/dashboard/internal/app"
)

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	dashboard *app.Dashboard
}

func NewHealthHandler(d *app.Dashboard) *HealthHandler {
	return &HealthHandler{dashboard: d}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	if failures := h.dashboard.Ready(ctx); len(failures) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "not_ready",
			"failures": failures,
		})
	}

	return c.JSON(fiber.Map{
		"status":    "ready",
		"inference": h.dashboard.Inference != nil,
		"notebooks": h.dashboard.Notebooks != nil,
	})
}
