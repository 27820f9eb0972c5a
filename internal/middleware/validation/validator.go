package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxBodySize         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware screens write requests before they reach a handler: the content
// type must be one the handlers parse and the body must fit MaxBodySize.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 64 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{
			fiber.MIMEApplicationJSON,
			fiber.MIMEApplicationForm,
			fiber.MIMEMultipartForm,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if contentType := c.Get(fiber.HeaderContentType); contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
			cfg.Logger.Warn("Unsupported content type",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.String("content_type", contentType),
			)
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if len(c.Body()) > cfg.MaxBodySize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body too large",
			})
		}

		return c.Next()
	}
}

func allowed(contentType string, types []string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, t := range types {
		if mediaType == t {
			return true
		}
	}
	return false
}
