package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsProctoringRoutesOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(logger))
	app.Get("/api/v2/proctoring/sessions/:id/status", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	_, err := app.Test(req)
	require.NoError(t, err)
	require.Zero(t, buf.Len())

	req = httptest.NewRequest(http.MethodGet, "/api/v2/proctoring/sessions/abc/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-1", resp.Header.Get("X-Correlation-ID"))

	line := buf.String()
	require.Contains(t, line, `"route":"/api/v2/proctoring/sessions/:id/status"`)
	require.Contains(t, line, `"correlation_id":"corr-1"`)
	require.Contains(t, line, `"session_id":"abc"`)
	require.Contains(t, line, `"level":"warn"`)
	require.Contains(t, line, `"latency_bucket"`)
}

func TestObservabilityLogsUnmatchedPathVerbatim(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/proctoring/unknown", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Contains(t, buf.String(), `"route":"/api/v2/proctoring/unknown"`)
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=250ms", latencyBucket(200*time.Millisecond))
	require.Equal(t, "<=500ms", latencyBucket(500*time.Millisecond))
	require.Equal(t, ">500ms", latencyBucket(time.Second))
}
