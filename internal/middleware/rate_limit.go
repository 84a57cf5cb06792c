package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/inform-api/internal/observability"
	"github.com/noah-isme/inform-api/internal/utils"
)

// RateLimit creates a fixed-window limiter keyed by the authenticated user,
// falling back to the client IP for anonymous traffic.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			subject := UserID(c)
			if subject == "" {
				subject = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, subject)
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.PublicRejections().WithLabelValues("ip_rate_limited").Inc()
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
	})
}
