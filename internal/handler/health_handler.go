package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/config"
	"github.com/noah-isme/inform-api/internal/utils"
)

// Health status values.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Components  map[string]string `json:"components"`
}

// HealthCheck reports database and Redis health. The database is required;
// Redis only degrades the service because every Redis use has a fallback.
func HealthCheck(cfg config.Config, db *gorm.DB, cache *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(withRequestContext(c), 2*time.Second)
		defer cancel()

		payload := HealthResponse{
			Status:      HealthStatusHealthy,
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Components:  map[string]string{},
		}

		payload.Components["database"] = "up"
		if err := pingDatabase(ctx, db); err != nil {
			payload.Components["database"] = "down"
			payload.Status = HealthStatusUnhealthy
		}

		if cache == nil {
			payload.Components["redis"] = "disabled"
		} else if err := cache.Ping(ctx).Err(); err != nil {
			payload.Components["redis"] = "down"
			if payload.Status == HealthStatusHealthy {
				payload.Status = HealthStatusDegraded
			}
		} else {
			payload.Components["redis"] = "up"
		}

		if payload.Status == HealthStatusUnhealthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service unhealthy",
			})
		}

		return utils.SendSuccess(c, "service "+payload.Status, payload)
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
