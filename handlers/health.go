package handlers

import (
	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/utils/cache"
	"github.com/gofiber/fiber/v2"
)

// HandleCheckHealth reports liveness of the API and its backing stores.
func HandleCheckHealth(store *database.GORMStore, redisCache *cache.RedisCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "ok",
			"database": "ok",
			"redis":    "ok",
		}
		code := fiber.StatusOK

		if err := store.HealthCheck(); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = fiber.StatusServiceUnavailable
		}

		if redisCache == nil {
			status["redis"] = "disabled"
		} else if _, err := redisCache.TTL(c.Context(), "healthcheck"); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
		}

		return c.Status(code).JSON(status)
	}
}
