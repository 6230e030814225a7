package handler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/dto"
	"github.com/noah-isme/gema-proctor-api/internal/middleware"
	"github.com/noah-isme/gema-proctor-api/internal/service"
	"github.com/noah-isme/gema-proctor-api/internal/utils"
)

// reads of a snapshot part stop one byte past this bound
const maxSnapshotRead = 4 * 1024 * 1024

// answers per candidate per minute; each one costs a classifier call
const answerRateLimit = 30

// ProctoringHandler exposes session endpoints to candidates and reviewers.
type ProctoringHandler struct {
	service   service.ProctoringService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProctoringHandler creates a proctoring handler instance.
func NewProctoringHandler(service service.ProctoringService, validator *validator.Validate, logger zerolog.Logger) *ProctoringHandler {
	return &ProctoringHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "proctoring_handler").Logger(),
	}
}

// Register binds session routes under the provided router group.
func (h *ProctoringHandler) Register(router fiber.Router) {
	candidate := middleware.AuthOptions{Role: middleware.AuthRoleCandidate}
	reviewer := middleware.AuthOptions{Role: middleware.AuthRoleReviewer}

	router.Post("/sessions", middleware.WithAuth(h.start, candidate))
	router.Post("/sessions/:id/frames", middleware.WithAuth(h.frame, candidate))
	router.Get("/sessions/:id/stream", middleware.WithAuth(h.upgrade, candidate), websocket.New(h.stream))
	router.Post("/sessions/:id/tab-switch", middleware.WithAuth(h.tabSwitch, candidate))
	router.Post("/sessions/:id/answers", middleware.RateLimit("proctoring-answers", answerRateLimit, time.Minute), middleware.WithAuth(h.answer, candidate))
	router.Post("/sessions/:id/voice", middleware.WithAuth(h.voice, candidate))
	router.Post("/sessions/:id/snapshots", middleware.WithAuth(h.snapshot, candidate))
	router.Get("/sessions/:id/status", middleware.WithAuth(h.status, candidate))
	router.Post("/sessions/:id/complete", middleware.WithAuth(h.complete, candidate))

	router.Get("/sessions/:id/report", middleware.WithAuth(h.report, reviewer))
	router.Put("/sessions/:id/assessment", middleware.WithAuth(h.assessment, reviewer))
}

func (h *ProctoringHandler) start(c *fiber.Ctx) error {
	var payload dto.StartSessionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	started, err := h.service.Start(requestContext(c), middleware.UserID(c), payload)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "proctoring session started", started)
}

func (h *ProctoringHandler) frame(c *fiber.Ctx) error {
	var payload dto.FrameRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleProctoringError(c, h.logger, err)
	}

	if err := h.service.PushFrame(requestContext(c), c.Params("id"), middleware.UserID(c), payload.Frame(time.Now().UTC())); err != nil {
		return handleProctoringError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProctoringHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	// the fasthttp request context is recycled once the connection is hijacked
	c.Locals("request_ctx", middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
	return c.Next()
}

func (h *ProctoringHandler) stream(conn *websocket.Conn) {
	candidateID := fmt.Sprint(conn.Locals(middleware.LocalUserID))
	sessionID := strings.TrimSpace(conn.Params("id"))
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.FrameStreamOptions{
		SessionID:     sessionID,
		CandidateID:   candidateID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("session_id", sessionID).Str("candidate_id", candidateID).Msg("frame stream connected")
	h.service.ServeFrameStream(conn, opts)
	h.logger.Info().Str("session_id", sessionID).Str("candidate_id", candidateID).Msg("frame stream disconnected")
}

func (h *ProctoringHandler) tabSwitch(c *fiber.Ctx) error {
	status, err := h.service.ReportTabSwitch(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tab switch recorded", status)
}

func (h *ProctoringHandler) answer(c *fiber.Ctx) error {
	var payload dto.AnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	status, err := h.service.ReportAnswer(requestContext(c), c.Params("id"), middleware.UserID(c), payload)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer received", status)
}

func (h *ProctoringHandler) voice(c *fiber.Ctx) error {
	var payload dto.VoiceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	status, err := h.service.ReportVoice(requestContext(c), c.Params("id"), middleware.UserID(c), payload)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "voice analysis received", status)
}

func (h *ProctoringHandler) snapshot(c *fiber.Ctx) error {
	file, err := c.FormFile("snapshot")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "snapshot is required")
	}

	var capturedAt time.Time
	if raw := strings.TrimSpace(c.FormValue("captured_at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid captured_at timestamp")
		}
		capturedAt = parsed
	}

	handle, err := file.Open()
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	defer handle.Close()

	payload, err := io.ReadAll(io.LimitReader(handle, maxSnapshotRead+1))
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}

	if err := h.service.UploadSnapshot(requestContext(c), c.Params("id"), middleware.UserID(c), payload, capturedAt); err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "snapshot accepted", nil)
}

func (h *ProctoringHandler) status(c *fiber.Ctx) error {
	status, err := h.service.LiveStatus(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "session status", status)
}

func (h *ProctoringHandler) complete(c *fiber.Ctx) error {
	var payload dto.CompleteSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	completed, err := h.service.Complete(requestContext(c), c.Params("id"), middleware.UserID(c), payload)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "proctoring session completed", completed)
}

func (h *ProctoringHandler) report(c *fiber.Ctx) error {
	report, err := h.service.Report(requestContext(c), c.Params("id"))
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "integrity report", report)
}

func (h *ProctoringHandler) assessment(c *fiber.Ctx) error {
	var payload dto.AssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	summary, err := h.service.UpdateAssessment(requestContext(c), c.Params("id"), payload)
	if err != nil {
		return handleProctoringError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assessment updated", summary)
}
