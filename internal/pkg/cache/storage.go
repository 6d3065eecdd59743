package cache

import (
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"
)

// NewLimiterStorage returns fiber storage for rate limiter counters, on its
// own database so limiter resets never touch cached entitlements.
func NewLimiterStorage(cfg config.Cache) fiber.Storage {
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.LimiterDB,
		Reset:    false,
	})
}
