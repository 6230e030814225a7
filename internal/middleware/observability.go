package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/observability"
)

// ObservedPrefix is the route prefix whose requests are measured and logged.
const ObservedPrefix = "/api/v2/proctoring"

// Observability records request metrics and one structured log line per
// proctoring request. For stream upgrades the latency covers the handshake only.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), ObservedPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)
		streamed := status == fiber.StatusSwitchingProtocols

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := logEvent(logger, status)
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("user_id", UserID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(elapsed)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(elapsed))
		if sessionID := c.Params("id"); sessionID != "" {
			event.Str("session_id", sessionID)
		}

		if streamed {
			event.Msg("frame stream upgraded")
		} else {
			event.Msg("proctoring request completed")
		}
		return err
	}
}

func logEvent(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= fiber.StatusInternalServerError:
		return logger.Error()
	case status >= fiber.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
		return route.Path
	}
	return c.Path()
}

func latencyBucket(elapsed time.Duration) string {
	bounds := []struct {
		limit time.Duration
		label string
	}{
		{25 * time.Millisecond, "<=25ms"},
		{50 * time.Millisecond, "<=50ms"},
		{100 * time.Millisecond, "<=100ms"},
		{250 * time.Millisecond, "<=250ms"},
		{500 * time.Millisecond, "<=500ms"},
	}
	for _, b := range bounds {
		if elapsed <= b.limit {
			return b.label
		}
	}
	return ">500ms"
}
