package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the default registry in the Prometheus text or
// OpenMetrics format, whichever the scraper negotiates.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// ObserveRequest records one API request against the request, latency and
// error collectors. route must be the route template, never the raw path.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	statusLabel := strconv.Itoa(status)
	APIRequests().WithLabelValues(method, route, statusLabel).Inc()
	APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= fiber.StatusBadRequest {
		APIErrors().WithLabelValues(method, route, statusLabel).Inc()
	}
}
