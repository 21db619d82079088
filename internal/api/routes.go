package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck probes one dependency.
type HealthCheck = func(ctx context.Context) error

// RegisterRoutes wires the service routes. checks are reported by name on
// /health; a failing check degrades the service.
func RegisterRoutes(app *fiber.App, h *Handler, checks map[string]HealthCheck) {
	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(healthCtx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/fetch", h.FetchHandler)
	v1.Post("/gate", h.GateHandler)
}
