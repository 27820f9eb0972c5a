package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/app"
	"github.com/churn-insight/dashboard/internal/features"
	"github.com/churn-insight/dashboard/internal/inference"
	"github.com/churn-insight/dashboard/internal/notebook"
	"github.com/churn-insight/dashboard/internal/web"
	"github.com/churn-insight/dashboard/pkg/logger"
)

// PageHandler serves the HTML side of both dashboards.
type PageHandler struct {
	dashboard *app.Dashboard
}

func NewPageHandler(d *app.Dashboard) *PageHandler {
	return &PageHandler{dashboard: d}
}

func (h *PageHandler) render(c *fiber.Ctx, status int, page string, data any) error {
	c.Status(status)
	c.Type("html", "utf-8")
	if err := h.dashboard.Renderer.Render(c.Response().BodyWriter(), page, data); err != nil {
		logger.Error("Failed to render page", zap.String("page", page), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render page")
	}
	return nil
}

// nav builds the sidebar: Home, the prediction form and every notebook.
func (h *PageHandler) nav(active string) []web.NavItem {
	items := []web.NavItem{{Label: "Home", Href: "/", Active: active == notebook.HomeSlug, Available: true}}

	if h.dashboard.Inference != nil {
		items = append(items, web.NavItem{Label: "Predict Attrition", Href: "/predict", Active: active == "predict", Available: true})
	}

	if h.dashboard.Notebooks != nil {
		for _, st := range h.dashboard.Notebooks.Statuses() {
			items = append(items, web.NavItem{
				Label:     st.Label,
				Href:      "/notebooks/" + st.Slug,
				Active:    active == st.Slug,
				Available: st.Available,
			})
		}
	}
	return items
}

func (h *PageHandler) layout(title, active string) web.Layout {
	return web.Layout{Title: title, Nav: h.nav(active)}
}

func (h *PageHandler) Home(c *fiber.Ctx) error {
	data := web.HomeData{
		Layout:           h.layout("Home", notebook.HomeSlug),
		InferenceEnabled: h.dashboard.Inference != nil,
	}
	if h.dashboard.Notebooks != nil {
		data.Notebooks = h.dashboard.Notebooks.Statuses()
	}
	return h.render(c, fiber.StatusOK, web.PageHome, data)
}

func (h *PageHandler) predictData(form inference.Form) web.PredictData {
	return web.PredictData{
		Layout: h.layout("Predict Attrition", "predict"),
		Schema: h.dashboard.Schema,
		Form:   form,
		Values: form.Values(),
	}
}

func (h *PageHandler) PredictForm(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, web.PagePredict, h.predictData(inference.DefaultForm()))
}

func (h *PageHandler) PredictSubmit(c *fiber.Ctx) error {
	form := inference.SubmissionForm()
	if err := c.BodyParser(&form); err != nil {
		logger.Warn("Failed to parse prediction form", zap.Error(err))
		data := h.predictData(form)
		data.Error = "The form could not be read. Please check the values and try again."
		return h.render(c, fiber.StatusBadRequest, web.PagePredict, data)
	}

	data := h.predictData(form)
	result, err := h.dashboard.Inference.Predict(c.UserContext(), form)
	if err != nil {
		var verr *inference.ValidationError
		switch {
		case errors.As(err, &verr):
			data.Invalid = verr
			return h.render(c, fiber.StatusBadRequest, web.PagePredict, data)
		case errors.Is(err, features.ErrUnknownCategory):
			data.Error = fmt.Sprintf("Unknown department %q.", form.Department)
			return h.render(c, fiber.StatusBadRequest, web.PagePredict, data)
		}

		logger.Error("Failed to predict", zap.Error(err))
		data.Error = "The prediction could not be computed."
		return h.render(c, fiber.StatusInternalServerError, web.PagePredict, data)
	}

	data.Result = web.NewResultView(result)
	return h.render(c, fiber.StatusOK, web.PagePredict, data)
}

func (h *PageHandler) Notebook(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == notebook.HomeSlug {
		return c.Redirect("/", fiber.StatusFound)
	}

	page, err := h.dashboard.Notebooks.RenderSlug(c.UserContext(), slug)
	if err == nil {
		return h.render(c, fiber.StatusOK, web.PageNotebook, web.NotebookData{
			Layout: h.layout(page.Entry.Label, slug),
			Page:   page,
		})
	}

	data := web.ErrorData{Layout: h.layout("Notebook", slug)}

	var (
		notFound *notebook.NotFoundError
		convErr  *notebook.ConversionError
	)
	switch {
	case errors.Is(err, notebook.ErrUnknownEntry):
		data.Heading = "Unknown notebook"
		data.Message = fmt.Sprintf("There is no notebook named %q.", slug)
		return h.render(c, fiber.StatusNotFound, web.PageError, data)
	case errors.As(err, &notFound):
		logger.Warn("Notebook file missing", zap.String("path", notFound.Path), zap.String("workdir", notFound.WorkDir))
		data.Heading = "Notebook not found"
		data.NotFound = notFound
		return h.render(c, fiber.StatusNotFound, web.PageError, data)
	case errors.As(err, &convErr):
		data.Heading = "Notebook could not be displayed"
		data.Message = fmt.Sprintf("Error converting notebook: %v", convErr.Err)
		return h.render(c, fiber.StatusUnprocessableEntity, web.PageError, data)
	}

	logger.Error("Failed to render notebook", zap.String("slug", slug), zap.Error(err))
	data.Heading = "Notebook could not be displayed"
	data.Message = "An unexpected error occurred."
	return h.render(c, fiber.StatusInternalServerError, web.PageError, data)
}
