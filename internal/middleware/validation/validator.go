package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	xssPattern      = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
	languagePattern = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z]{2,4})?$`)
)

type Config struct {
	MaxFieldLength    int
	MaxSources        int
	MaxFeedbackLength int
	Logger            *zap.Logger
}

// Middleware rejects malformed report and feedback bodies before they reach
// the engine.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxFieldLength == 0 {
		cfg.MaxFieldLength = 200
	}
	if cfg.MaxSources == 0 {
		cfg.MaxSources = 10
	}
	if cfg.MaxFeedbackLength == 0 {
		cfg.MaxFeedbackLength = 2000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if ct := c.Get(fiber.HeaderContentType); ct != "" && !strings.Contains(ct, fiber.MIMEApplicationJSON) {
			return badRequest(c, fiber.StatusUnsupportedMediaType, "Unsupported content type")
		}

		path := c.Path()
		switch {
		case c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/reports"):
			return validateReport(c, cfg)
		case c.Method() == fiber.MethodPut && strings.HasSuffix(path, "/feedback"):
			return validateFeedback(c, cfg)
		}
		return c.Next()
	}
}

func validateReport(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fiber.StatusBadRequest, "Invalid JSON format")
	}

	tool, ok := req["tool"].(string)
	if !ok || strings.TrimSpace(tool) == "" {
		return badRequest(c, fiber.StatusBadRequest, "tool is required and must be a string")
	}
	if len(tool) > cfg.MaxFieldLength {
		return badRequest(c, fiber.StatusBadRequest, "tool exceeds maximum length")
	}

	rawSources, ok := req["sources"].([]interface{})
	if !ok || len(rawSources) == 0 {
		return badRequest(c, fiber.StatusBadRequest, "sources must be a non-empty array")
	}
	if len(rawSources) > cfg.MaxSources {
		return badRequest(c, fiber.StatusBadRequest, "too many sources")
	}
	fields := []string{tool}
	for _, s := range rawSources {
		src, ok := s.(string)
		if !ok || strings.TrimSpace(src) == "" || len(src) > cfg.MaxFieldLength {
			return badRequest(c, fiber.StatusBadRequest, "each source must be a non-empty string")
		}
		fields = append(fields, src)
	}

	if lang, present := req["language"]; present {
		s, ok := lang.(string)
		if !ok || (s != "" && !languagePattern.MatchString(s)) {
			return badRequest(c, fiber.StatusBadRequest, "language must be a language code such as en or es")
		}
	}

	if model, present := req["preferred_model"]; present {
		s, ok := model.(string)
		if !ok || len(s) > cfg.MaxFieldLength {
			return badRequest(c, fiber.StatusBadRequest, "preferred_model must be a short string")
		}
	}

	for _, f := range fields {
		if containsXSS(f) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("value", f),
			)
			return badRequest(c, fiber.StatusBadRequest, "Invalid request content")
		}
	}

	return c.Next()
}

func validateFeedback(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fiber.StatusBadRequest, "Invalid JSON format")
	}

	if _, ok := req["rating"].(float64); !ok {
		return badRequest(c, fiber.StatusBadRequest, "rating is required and must be a number")
	}

	if fb, present := req["feedback"]; present {
		s, ok := fb.(string)
		if !ok {
			return badRequest(c, fiber.StatusBadRequest, "feedback must be a string")
		}
		if len([]rune(s)) > cfg.MaxFeedbackLength {
			return badRequest(c, fiber.StatusRequestEntityTooLarge, "feedback exceeds maximum length")
		}
		if containsXSS(s) {
			cfg.Logger.Warn("Potential XSS attempt", zap.String("ip", c.IP()))
			return badRequest(c, fiber.StatusBadRequest, "Invalid request content")
		}
	}

	return c.Next()
}

func badRequest(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}
