package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proctor-api/internal/config"
	"github.com/noah-isme/gema-proctor-api/internal/observability"
	"github.com/noah-isme/gema-proctor-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status         string           `json:"status"`
	Timestamp      time.Time        `json:"timestamp"`
	Service        string           `json:"service"`
	Environment    string           `json:"environment"`
	ActiveSessions int              `json:"active_sessions"`
	Proctoring     ProctoringHealth `json:"proctoring"`
}

// ProctoringHealth summarises how the monitoring pipeline is configured.
type ProctoringHealth struct {
	TickInterval     string `json:"tick_interval"`
	SnapshotInterval string `json:"snapshot_interval"`
	SnapshotStorage  string `json:"snapshot_storage"`
	Classifier       string `json:"classifier"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	proctoring := ProctoringHealth{
		TickInterval:     cfg.Engine.TickInterval.String(),
		SnapshotInterval: cfg.Engine.SnapshotInterval.String(),
		SnapshotStorage:  "disabled",
		Classifier:       classifierMode(cfg),
	}
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		proctoring.SnapshotStorage = "cloudinary"
	}

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:         "ok",
			Timestamp:      time.Now().UTC(),
			Service:        cfg.AppName,
			Environment:    cfg.AppEnv,
			ActiveSessions: observability.ActiveSessionCount(),
			Proctoring:     proctoring,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// classifierMode mirrors ai.NewClassifier: without a key for the chosen
// provider answers are scored by pattern matching.
func classifierMode(cfg config.Config) string {
	switch cfg.AIProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			return "anthropic"
		}
	case "openai", "":
		if cfg.OpenAIAPIKey != "" {
			return "openai"
		}
	}
	return "pattern"
}
