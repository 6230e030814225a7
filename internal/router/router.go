package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proctor-api/internal/config"
	"github.com/noah-isme/gema-proctor-api/internal/handler"
	"github.com/noah-isme/gema-proctor-api/internal/middleware"
	"github.com/noah-isme/gema-proctor-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProctoringHandler  *handler.ProctoringHandler
	LeaderboardHandler *handler.LeaderboardHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	proctoring := app.Group(middleware.ObservedPrefix, jwtMiddleware)

	if deps.ProctoringHandler != nil {
		deps.ProctoringHandler.Register(proctoring)
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(proctoring)
	}
}
