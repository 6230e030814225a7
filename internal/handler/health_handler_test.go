package handler_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gema-proctor-api/internal/config"
	"github.com/noah-isme/gema-proctor-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "Proctor API",
		AppEnv:  "test",
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, cfg.AppName, payload.Data.Service)
	assert.Equal(t, cfg.AppEnv, payload.Data.Environment)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
	assert.GreaterOrEqual(t, payload.Data.ActiveSessions, 0)
	assert.Equal(t, "disabled", payload.Data.Proctoring.SnapshotStorage)
	assert.Equal(t, "pattern", payload.Data.Proctoring.Classifier)
}

func TestHealthCheckReportsProctoringPipeline(t *testing.T) {
	cfg := config.Config{
		AppName:             "Proctor API",
		AIProvider:          "anthropic",
		AnthropicAPIKey:     "key",
		CloudinaryCloudName: "demo",
		CloudinaryAPIKey:    "key",
		CloudinaryAPISecret: "secret",
		Engine: config.EngineConfig{
			TickInterval:     250 * time.Millisecond,
			SnapshotInterval: 3 * time.Second,
		},
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, handler.ProctoringHealth{
		TickInterval:     "250ms",
		SnapshotInterval: "3s",
		SnapshotStorage:  "cloudinary",
		Classifier:       "anthropic",
	}, payload.Data.Proctoring)
}
