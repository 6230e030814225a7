package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// MetricsHandler serves the proctoring collectors for scraping. A collector
// that fails to gather does not hide the others.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// ActiveSessionCount reads the running session gauge.
func ActiveSessionCount() int {
	var metric dto.Metric
	if err := ActiveSessions().Write(&metric); err != nil {
		return 0
	}
	return int(metric.GetGauge().GetValue())
}
