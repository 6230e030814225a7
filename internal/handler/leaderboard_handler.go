package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/middleware"
	"github.com/noah-isme/gema-proctor-api/internal/service"
	"github.com/noah-isme/gema-proctor-api/internal/utils"
)

// LeaderboardHandler exposes posting rankings to reviewers.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler creates a leaderboard handler instance.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register binds posting routes under the provided router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	reviewer := middleware.AuthOptions{Role: middleware.AuthRoleReviewer}
	postings := router.Group("/postings", middleware.RequireRole(middleware.AuthRoleReviewer))
	postings.Get("/:postingId/leaderboard", middleware.WithAuth(h.leaderboard, reviewer))
	postings.Get("/:postingId/candidates/:candidateId/comparison", middleware.WithAuth(h.comparison, reviewer))
}

func (h *LeaderboardHandler) leaderboard(c *fiber.Ctx) error {
	top, err := parseQueryInt(c, "top")
	if err != nil || top < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid top")
	}

	board, err := h.service.Leaderboard(requestContext(c), c.Params("postingId"), top)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}

	meta := fiber.Map{"cache_hit": board.CacheHit, "top_n": board.TopN}
	return utils.OK(c, board.Leaderboard, "leaderboard retrieved", meta)
}

func (h *LeaderboardHandler) comparison(c *fiber.Ctx) error {
	comparison, err := h.service.Compare(requestContext(c), c.Params("postingId"), c.Params("candidateId"))
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "peer comparison", comparison)
}
