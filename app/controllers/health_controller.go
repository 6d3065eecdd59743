package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Pinger is any dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	checks map[string]Pinger
	log    zerolog.Logger
}

func NewHealthController(checks map[string]Pinger, log zerolog.Logger) *HealthController {
	return &HealthController{checks: checks, log: log}
}

// HandleHealthz reports 200 when every dependency answers, 503 otherwise.
func (hc *HealthController) HandleHealthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	result := fiber.Map{}
	for name, check := range hc.checks {
		if err := check.Ping(ctx); err != nil {
			hc.log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			result[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	overall := "ok"
	if status != fiber.StatusOK {
		overall = "degraded"
	}
	result["status"] = overall
	return c.Status(status).JSON(result)
}
