package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestDomainMetricsAreScraped(t *testing.T) {
	ReviewsSaved().WithLabelValues("submit").Inc()

	AggregationRuns().WithLabelValues("success").Inc()
	SubmissionsCreated().Inc()
	ObserveRequest("POST", "/api/v1/submissions/:id/reviews", 409, 15*time.Millisecond)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "inform_reviews_saved_total"))
	require.True(t, strings.Contains(string(body), "inform_aggregation_runs_total"))
	require.True(t, strings.Contains(string(body), "inform_submissions_created_total"))
	require.True(t, strings.Contains(string(body), `kind="submit"`))
	require.True(t, strings.Contains(string(body), `inform_api_errors_total{method="POST",route="/api/v1/submissions/:id/reviews",status="409"}`))
}
