package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/churn-insight/dashboard/internal/notebook"
)

type NotebookHandler struct {
	service *notebook.Service
}

func NewNotebookHandler(service *notebook.Service) *NotebookHandler {
	return &NotebookHandler{
		service: service,
	}
}

// ListNotebooks reports the catalog in menu order with file availability.
func (h *NotebookHandler) ListNotebooks(c *fiber.Ctx) error {
	statuses := h.service.Statuses()
	return c.JSON(fiber.Map{
		"notebooks": statuses,
		"count":     len(statuses),
	})
}
