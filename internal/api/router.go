// Package api assembles the fiber application serving both dashboards.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/churn-insight/dashboard/internal/api/handlers"
	"github.com/churn-insight/dashboard/internal/app"
	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/internal/middleware/ratelimit"
	"github.com/churn-insight/dashboard/internal/middleware/security"
	"github.com/churn-insight/dashboard/internal/middleware/validation"
	"github.com/churn-insight/dashboard/internal/web"
	"github.com/churn-insight/dashboard/pkg/config"
	"github.com/churn-insight/dashboard/pkg/logger"
)

// Server is the fiber app plus the background resources its middleware owns.
type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

// NewServer registers routes for whichever dashboards d has enabled.
func NewServer(d *app.Dashboard, cfg *config.Config) *Server {
	fiberApp := fiber.New(fiber.Config{
		AppName:      "churn-dashboard",
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(fiberlogger.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(cfg.Server.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	fiberApp.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	fiberApp.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(web.Static()),
		MaxAge: 3600,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               logger.Named("ratelimit"),
	})
	guard := []fiber.Handler{
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			MaxBodySize: cfg.Server.BodyLimit,
			Logger:      logger.Named("validation"),
		}),
	}

	pages := handlers.NewPageHandler(d)
	health := handlers.NewHealthHandler(d)

	fiberApp.Get("/", pages.Home)

	api := fiberApp.Group("/api/v1")
	api.Get("/health", health.Health)
	api.Get("/ready", health.Ready)

	if d.Inference != nil {
		fiberApp.Get("/predict", pages.PredictForm)
		fiberApp.Post("/predict", append(guard, pages.PredictSubmit)...)

		predictHandler := handlers.NewPredictHandler(d.Inference, d.Schema, d.Model)
		api.Get("/schema", predictHandler.GetSchema)
		api.Post("/predict", append(guard, predictHandler.HandlePredict)...)
		api.Get("/predictions", predictHandler.GetPredictionHistory)
		api.Get("/predictions/summary", predictHandler.GetPredictionSummary)
	}

	if d.Notebooks != nil {
		fiberApp.Get("/notebooks/:slug", pages.Notebook)

		notebookHandler := handlers.NewNotebookHandler(d.Notebooks)
		api.Get("/notebooks", notebookHandler.ListNotebooks)
	}

	fiberApp.Get("/metrics", metrics.MetricsHandler())

	return &Server{App: fiberApp, limiter: limiter}
}

// Shutdown stops accepting connections and releases middleware resources.
func (s *Server) Shutdown() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}

func allowOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ", ")
}
