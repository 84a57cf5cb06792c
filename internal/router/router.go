package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/config"
	"github.com/noah-isme/inform-api/internal/handler"
	"github.com/noah-isme/inform-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                  *gorm.DB
	Redis               *redis.Client
	OrganizationHandler *handler.OrganizationHandler
	FormHandler         *handler.FormHandler
	SubmissionHandler   *handler.SubmissionHandler
	ReviewHandler       *handler.ReviewHandler
	PublicFormHandler   *handler.PublicFormHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Redis))

	if deps.PublicFormHandler != nil {
		deps.PublicFormHandler.Register(app.Group("/api/public"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Everything below health requires a caller identity; org roles are
	// checked by the services.
	protected := api.Group("", jwtMiddleware, middleware.RequireAuthenticated())

	if deps.OrganizationHandler != nil {
		deps.OrganizationHandler.Register(protected)
	}
	if deps.FormHandler != nil {
		deps.FormHandler.Register(protected)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(protected.Group("/submissions"))
	}
}
