package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/config"
	"github.com/noah-isme/inform-api/internal/handler"
)

type healthBody struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
}

func healthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:handler_health?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func checkHealth(t *testing.T, db *gorm.DB, cache *redis.Client) (int, healthBody) {
	t.Helper()
	cfg := config.Config{AppName: "Inform API", AppEnv: "test"}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, db, cache))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)

	var body healthBody
	decodeResponse(t, resp, &body)
	require.Equal(t, cfg.AppName, body.Data.Service)
	require.Equal(t, cfg.AppEnv, body.Data.Environment)
	require.WithinDuration(t, time.Now().UTC(), body.Data.Timestamp, 2*time.Second)
	return resp.StatusCode, body
}

func TestHealthCheck_Healthy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status, body := checkHealth(t, healthDB(t), client)
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, body.Success)
	require.Equal(t, handler.HealthStatusHealthy, body.Data.Status)
	require.Equal(t, "up", body.Data.Components["database"])
	require.Equal(t, "up", body.Data.Components["redis"])
}

func TestHealthCheck_RedisDisabledStaysHealthy(t *testing.T) {
	status, body := checkHealth(t, healthDB(t), nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, handler.HealthStatusHealthy, body.Data.Status)
	require.Equal(t, "disabled", body.Data.Components["redis"])
}

func TestHealthCheck_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	status, body := checkHealth(t, healthDB(t), client)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, handler.HealthStatusDegraded, body.Data.Status)
	require.Equal(t, "down", body.Data.Components["redis"])
}

func TestHealthCheck_MissingDatabaseIsUnhealthy(t *testing.T) {
	status, body := checkHealth(t, nil, nil)
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.False(t, body.Success)
	require.Equal(t, handler.HealthStatusUnhealthy, body.Data.Status)
	require.Equal(t, "down", body.Data.Components["database"])
}
