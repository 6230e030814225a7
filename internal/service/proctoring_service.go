package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-proctor-api/internal/config"
	"github.com/noah-isme/gema-proctor-api/internal/dto"
	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/observability"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
	"github.com/noah-isme/gema-proctor-api/pkg/ai"
)

var (
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("proctoring session not found")
	// ErrSessionClosed indicates the session no longer accepts evidence.
	ErrSessionClosed = errors.New("proctoring session closed")
	// ErrSessionForbidden indicates the session belongs to another candidate.
	ErrSessionForbidden = errors.New("proctoring session belongs to another candidate")
	// ErrServiceShuttingDown indicates new sessions are refused during shutdown.
	ErrServiceShuttingDown = errors.New("proctoring service shutting down")
)

// ProctoringConfig tunes the engine and the per-session monitors.
type ProctoringConfig struct {
	Geometry         proctor.GeometryConfig
	Detector         proctor.DetectorConfig
	Monitor          proctor.MonitorConfig
	FrameMaxAge      time.Duration
	SnapshotInterval time.Duration
	SnapshotTimeout  time.Duration
	MaxSnapshotBytes int64
	StatusInterval   time.Duration
}

// DefaultProctoringConfig returns the engine defaults.
func DefaultProctoringConfig() ProctoringConfig {
	return ProctoringConfig{
		Geometry:         proctor.DefaultGeometryConfig(),
		Detector:         proctor.DefaultDetectorConfig(),
		Monitor:          proctor.DefaultMonitorConfig(),
		FrameMaxAge:      2 * time.Second,
		SnapshotInterval: 3 * time.Second,
		SnapshotTimeout:  30 * time.Second,
		MaxSnapshotBytes: 2 * 1024 * 1024,
		StatusInterval:   time.Second,
	}
}

// NewProctoringConfig maps the environment configuration onto the engine.
func NewProctoringConfig(engine config.EngineConfig) ProctoringConfig {
	cfg := DefaultProctoringConfig()
	cfg.Geometry.Gaze = proctor.GazeBand{
		HorizontalMin: engine.GazeHorizontalMin,
		HorizontalMax: engine.GazeHorizontalMax,
		VerticalMin:   engine.GazeVerticalMin,
		VerticalMax:   engine.GazeVerticalMax,
	}
	cfg.Geometry.Emotion.Threshold = engine.EmotionThreshold
	cfg.Geometry.Emotion.Normalizer = engine.EmotionNormalizer
	cfg.Detector = proctor.DetectorConfig{
		BlinkThreshold: engine.BlinkThreshold,
		MaxBlinkRate:   engine.MaxBlinkRate,
		YawLimit:       engine.YawLimit,
		PitchLimit:     engine.PitchLimit,
		AwayDebounce:   engine.AwayDebounce,
		LateralLimit:   engine.LateralLimit,
	}
	cfg.Monitor.TickInterval = engine.TickInterval
	cfg.Monitor.CheckpointInterval = engine.CheckpointInterval
	if engine.FrameMaxAge > 0 {
		cfg.FrameMaxAge = engine.FrameMaxAge
	}
	if engine.SnapshotInterval > 0 {
		cfg.SnapshotInterval = engine.SnapshotInterval
	}
	return cfg
}

// ProctoringDeps wires the service to its collaborators. Sink, Snapshots and
// Leaderboard are optional.
type ProctoringDeps struct {
	Repo        repository.ProctoringSessionRepository
	Classifier  ai.AuthorshipClassifier
	Sink        proctor.ViolationSink
	Snapshots   SnapshotStore
	Leaderboard LeaderboardInvalidator
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

// LeaderboardInvalidator drops cached rankings once a posting changes.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, postingID string) error
}

// ProctoringService hosts the monitored sessions. Candidate-facing
// operations only ever return live status.
type ProctoringService interface {
	Start(ctx context.Context, candidateID string, req dto.StartSessionRequest) (dto.SessionStartedResponse, error)
	PushFrame(ctx context.Context, sessionID, candidateID string, frame proctor.LandmarkFrame) error
	ReportTabSwitch(ctx context.Context, sessionID, candidateID string) (proctor.LiveStatus, error)
	ReportAnswer(ctx context.Context, sessionID, candidateID string, req dto.AnswerRequest) (proctor.LiveStatus, error)
	ReportVoice(ctx context.Context, sessionID, candidateID string, req dto.VoiceRequest) (proctor.LiveStatus, error)
	UploadSnapshot(ctx context.Context, sessionID, candidateID string, payload []byte, capturedAt time.Time) error
	LiveStatus(ctx context.Context, sessionID, candidateID string) (proctor.LiveStatus, error)
	Complete(ctx context.Context, sessionID, candidateID string, req dto.CompleteSessionRequest) (dto.SessionCompletedResponse, error)
	Report(ctx context.Context, sessionID string) (dto.SessionReportResponse, error)
	UpdateAssessment(ctx context.Context, sessionID string, req dto.AssessmentRequest) (dto.SessionSummary, error)
	ServeFrameStream(conn FrameConn, opts FrameStreamOptions)
	Shutdown(ctx context.Context) error
}

// liveSession is a session with a running monitor on this node.
type liveSession struct {
	recordID    uint
	publicID    string
	candidateID string
	postingID   string
	monitor     *proctor.Monitor
	feed        *proctor.FeedProvider
	checkpoints *checkpointer
	snapshots   *rate.Limiter

	mu     sync.Mutex
	closed bool
}

type proctoringService struct {
	repo        repository.ProctoringSessionRepository
	classifier  ai.AuthorshipClassifier
	sink        proctor.ViolationSink
	snapshots   SnapshotStore
	leaderboard LeaderboardInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	cfg         ProctoringConfig

	engine     *proctor.Engine
	detector   *proctor.Detector
	aggregator *proctor.Aggregator

	baseCtx context.Context
	cancel  context.CancelFunc
	uploads sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*liveSession
	stopping bool

	now func() time.Time
}

// NewProctoringService builds the service. Monitors run on a context owned
// by the service, not by the request that started them.
func NewProctoringService(cfg ProctoringConfig, deps ProctoringDeps) ProctoringService {
	if deps.Classifier == nil {
		deps.Classifier = ai.NewPatternClassifier()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	def := DefaultProctoringConfig()
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = def.SnapshotInterval
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = def.SnapshotTimeout
	}
	if cfg.MaxSnapshotBytes <= 0 {
		cfg.MaxSnapshotBytes = def.MaxSnapshotBytes
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &proctoringService{
		repo:        deps.Repo,
		classifier:  deps.Classifier,
		sink:        deps.Sink,
		snapshots:   deps.Snapshots,
		leaderboard: deps.Leaderboard,
		validator:   deps.Validator,
		logger:      deps.Logger.With().Str("component", "proctoring_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-proctor-api/internal/service/proctoring"),
		sanitizer:   bluemonday.StrictPolicy(),
		cfg:         cfg,
		engine:      proctor.NewEngine(cfg.Geometry),
		detector:    proctor.NewDetector(cfg.Detector),
		aggregator:  proctor.NewAggregator(proctor.DefaultAggregatorConfig()),
		baseCtx:     baseCtx,
		cancel:      cancel,
		sessions:    make(map[string]*liveSession),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *proctoringService) Start(ctx context.Context, candidateID string, req dto.StartSessionRequest) (dto.SessionStartedResponse, error) {
	ctx, span := s.tracer.Start(ctx, "proctoring.start")
	defer span.End()

	req.PostingID = strings.TrimSpace(req.PostingID)
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SessionStartedResponse{}, err
	}
	if strings.TrimSpace(candidateID) == "" {
		return dto.SessionStartedResponse{}, ErrSessionForbidden
	}
	if s.shuttingDown() {
		return dto.SessionStartedResponse{}, ErrServiceShuttingDown
	}

	base := float64(proctor.DefaultBaseScore)
	if req.BaseScore != nil {
		base = *req.BaseScore
	}

	now := s.now()
	record := models.ProctoringSession{
		PublicID:    uuid.NewString(),
		CandidateID: candidateID,
		PostingID:   req.PostingID,
		Status:      models.SessionStatusActive,
		BaseScore:   base,
		StartedAt:   now,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.SessionStartedResponse{}, fmt.Errorf("create session: %w", err)
	}

	live, err := s.launch(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		return dto.SessionStartedResponse{}, err
	}

	span.SetAttributes(
		attribute.String("proctoring.session_id", record.PublicID),
		attribute.String("proctoring.posting_id", record.PostingID),
	)
	s.logger.Info().
		Str("session_id", record.PublicID).
		Str("candidate_id", candidateID).
		Str("posting_id", record.PostingID).
		Msg("proctoring session started")

	return dto.SessionStartedResponse{
		SessionID: record.PublicID,
		PostingID: record.PostingID,
		StartedAt: record.StartedAt,
		Status:    live.monitor.Status(),
	}, nil
}

func (s *proctoringService) PushFrame(ctx context.Context, sessionID, candidateID string, frame proctor.LandmarkFrame) error {
	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		return err
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = s.now()
	}
	if err := live.feed.Push(frame); err != nil {
		if errors.Is(err, proctor.ErrProviderClosed) {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}

func (s *proctoringService) ReportTabSwitch(ctx context.Context, sessionID, candidateID string) (proctor.LiveStatus, error) {
	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		return proctor.LiveStatus{}, err
	}
	if _, err := live.monitor.RecordTabSwitch(ctx); err != nil {
		return proctor.LiveStatus{}, monitorError(err)
	}
	return live.monitor.Status(), nil
}

func (s *proctoringService) ReportAnswer(ctx context.Context, sessionID, candidateID string, req dto.AnswerRequest) (proctor.LiveStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return proctor.LiveStatus{}, err
	}
	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		return proctor.LiveStatus{}, err
	}

	ctx, span := s.tracer.Start(ctx, "proctoring.answer")
	span.SetAttributes(
		attribute.String("proctoring.session_id", sessionID),
		attribute.Int("proctoring.answer_length", len(req.Answer)),
	)
	defer span.End()

	// classification runs on the request goroutine; only the verdict enters the monitor
	verdict, err := s.classifier.Classify(ctx, req.Answer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return proctor.LiveStatus{}, fmt.Errorf("classify answer: %w", err)
	}
	span.SetAttributes(
		attribute.Bool("proctoring.ai_generated", verdict.AIGenerated),
		attribute.Int("proctoring.ai_confidence", verdict.Confidence),
		attribute.String("proctoring.ai_method", verdict.Method),
	)

	reasoning := strings.TrimSpace(s.sanitizer.Sanitize(verdict.Reasoning))
	_, recorded, err := live.monitor.RecordAIAnswer(ctx, verdict.AIGenerated, verdict.Confidence, reasoning)
	if err != nil {
		return proctor.LiveStatus{}, monitorError(err)
	}
	if recorded {
		s.logger.Info().
			Str("session_id", sessionID).
			Str("question_id", req.QuestionID).
			Int("confidence", verdict.Confidence).
			Str("method", verdict.Method).
			Msg("answer flagged as ai authored")
	}
	return live.monitor.Status(), nil
}

// ReportVoice records a voice anomaly when more than one speaker was heard.
func (s *proctoringService) ReportVoice(ctx context.Context, sessionID, candidateID string, req dto.VoiceRequest) (proctor.LiveStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return proctor.LiveStatus{}, err
	}
	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		return proctor.LiveStatus{}, err
	}
	if req.Speakers > 1 {
		if _, err := live.monitor.RecordVoiceAnomaly(ctx, req.Speakers, req.Confidence); err != nil {
			return proctor.LiveStatus{}, monitorError(err)
		}
	}
	return live.monitor.Status(), nil
}

func (s *proctoringService) LiveStatus(ctx context.Context, sessionID, candidateID string) (proctor.LiveStatus, error) {
	if live, ok := s.lookup(sessionID); ok {
		if live.candidateID != candidateID {
			return proctor.LiveStatus{}, ErrSessionForbidden
		}
		return live.monitor.Status(), nil
	}

	record, err := s.load(ctx, sessionID, candidateID)
	if err != nil {
		return proctor.LiveStatus{}, err
	}
	if !record.Active() {
		return closedStatus(record), nil
	}
	live, err := s.launch(record)
	if err != nil {
		return proctor.LiveStatus{}, err
	}
	return live.monitor.Status(), nil
}

// Complete stops the monitor and persists the final counters. A failed
// write keeps the session registered so the candidate can retry.
func (s *proctoringService) Complete(ctx context.Context, sessionID, candidateID string, req dto.CompleteSessionRequest) (dto.SessionCompletedResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionCompletedResponse{}, err
	}
	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		return dto.SessionCompletedResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "proctoring.complete")
	span.SetAttributes(attribute.String("proctoring.session_id", sessionID))
	defer span.End()

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.closed {
		return dto.SessionCompletedResponse{}, ErrSessionClosed
	}

	final := live.monitor.Stop()
	live.checkpoints.Close()

	record, err := s.repo.GetByPublicID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return dto.SessionCompletedResponse{}, repositoryError(err)
	}
	inputs := record.ScoreInputs()
	if req.BaseScore != nil {
		inputs.BaseScore = *req.BaseScore
	}
	if req.Confidence != nil {
		inputs.Confidence = *req.Confidence
	}
	if req.ApplicationScore != nil {
		inputs.ApplicationScore = *req.ApplicationScore
	}

	counters := final.Counters.Clone()
	s.aggregator.ApplyCompletionFlag(&counters)

	completed, err := s.repo.Complete(ctx, sessionID, repository.SessionCompletion{
		Counters:    counters,
		Inputs:      inputs,
		CompletedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrSessionCompleted) {
			live.closed = true
			s.release(sessionID)
			return dto.SessionCompletedResponse{}, ErrSessionClosed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to complete proctoring session")
		return dto.SessionCompletedResponse{}, repositoryError(err)
	}

	live.closed = true
	s.release(sessionID)
	s.invalidate(ctx, completed.PostingID)

	s.logger.Info().
		Str("session_id", sessionID).
		Int("violations", len(counters.Log)).
		Bool("flagged", counters.Flagged).
		Msg("proctoring session completed")

	completedAt := s.now()
	if completed.CompletedAt != nil {
		completedAt = *completed.CompletedAt
	}
	return dto.SessionCompletedResponse{
		SessionID:   sessionID,
		Status:      completed.Status,
		CompletedAt: completedAt,
	}, nil
}

// Report recomputes the integrity verdict. Running sessions are read from
// their monitor, everything else from storage.
func (s *proctoringService) Report(ctx context.Context, sessionID string) (dto.SessionReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "proctoring.report")
	span.SetAttributes(attribute.String("proctoring.session_id", sessionID))
	defer span.End()

	record, err := s.repo.GetByPublicID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return dto.SessionReportResponse{}, repositoryError(err)
	}

	counters := record.Counters()
	if live, ok := s.lookup(sessionID); ok && record.Active() {
		if state, err := live.monitor.Snapshot(ctx); err == nil {
			counters = state.Counters
		}
	}

	return dto.SessionReportResponse{
		Session:   dto.NewSessionSummary(record),
		Report:    proctor.BuildReport(record.PublicID, counters, record.ScoreInputs()),
		Snapshots: dto.NewSnapshotResponses(record.Snapshots),
	}, nil
}

func (s *proctoringService) UpdateAssessment(ctx context.Context, sessionID string, req dto.AssessmentRequest) (dto.SessionSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionSummary{}, err
	}
	record, err := s.repo.UpdateAssessment(ctx, sessionID, req.Confidence, req.ApplicationScore)
	if err != nil {
		return dto.SessionSummary{}, repositoryError(err)
	}
	if !record.Active() {
		s.invalidate(ctx, record.PostingID)
	}
	return dto.NewSessionSummary(record), nil
}

// Shutdown stops every monitor, writes its final counters and waits for
// pending snapshot uploads. Sessions stay active and resume on next use.
func (s *proctoringService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	sessions := make([]*liveSession, 0, len(s.sessions))
	for id, live := range s.sessions {
		sessions = append(sessions, live)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, live := range sessions {
		live.mu.Lock()
		if !live.closed {
			final := live.monitor.Stop()
			live.checkpoints.Close()
			if err := s.repo.Checkpoint(ctx, live.publicID, final.Counters); err != nil && !errors.Is(err, repository.ErrSessionCompleted) {
				errs = append(errs, fmt.Errorf("checkpoint %s: %w", live.publicID, err))
			}
			live.closed = true
			observability.ActiveSessions().Dec()
		}
		live.mu.Unlock()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.uploads.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for snapshot uploads: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}

// obtain returns the live session, resuming monitoring for sessions that are
// stored as active but not running on this node.
func (s *proctoringService) obtain(ctx context.Context, sessionID, candidateID string) (*liveSession, error) {
	if live, ok := s.lookup(sessionID); ok {
		if live.candidateID != candidateID {
			return nil, ErrSessionForbidden
		}
		return live, nil
	}

	record, err := s.load(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}
	if !record.Active() {
		return nil, ErrSessionClosed
	}
	return s.launch(record)
}

func (s *proctoringService) load(ctx context.Context, sessionID, candidateID string) (models.ProctoringSession, error) {
	record, err := s.repo.GetByPublicID(ctx, sessionID)
	if err != nil {
		return models.ProctoringSession{}, repositoryError(err)
	}
	if record.CandidateID != candidateID {
		return models.ProctoringSession{}, ErrSessionForbidden
	}
	return record, nil
}

func (s *proctoringService) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *proctoringService) lookup(sessionID string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[sessionID]
	return live, ok
}

// launch registers and starts a monitor for record, seeded with its stored
// counters. A concurrent launch of the same session returns the winner.
func (s *proctoringService) launch(record models.ProctoringSession) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, ErrServiceShuttingDown
	}
	if live, ok := s.sessions[record.PublicID]; ok {
		return live, nil
	}

	state := proctor.NewSessionState(record.PublicID, record.StartedAt)
	state.Counters = record.Counters()

	feed := proctor.NewFeedProvider(s.cfg.FrameMaxAge)
	checkpoints := newCheckpointer(s.repo, record.PublicID, s.cfg.Monitor.SinkTimeout, s.logger)
	monitor := proctor.NewMonitor(state, s.cfg.Monitor, proctor.MonitorDeps{
		Engine:     s.engine,
		Detector:   s.detector,
		Aggregator: s.aggregator,
		Provider:   feed,
		Sink:       s.sink,
		Checkpoint: checkpoints.Offer,
		Hooks:      monitorHooks(),
		Logger:     s.logger,
	})

	if err := monitor.Start(s.baseCtx); err != nil {
		checkpoints.Close()
		return nil, err
	}

	live := &liveSession{
		recordID:    record.ID,
		publicID:    record.PublicID,
		candidateID: record.CandidateID,
		postingID:   record.PostingID,
		monitor:     monitor,
		feed:        feed,
		checkpoints: checkpoints,
		snapshots:   rate.NewLimiter(rate.Every(s.cfg.SnapshotInterval), 1),
	}
	s.sessions[record.PublicID] = live
	observability.ActiveSessions().Inc()
	return live, nil
}

func (s *proctoringService) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		observability.ActiveSessions().Dec()
	}
}

func (s *proctoringService) invalidate(ctx context.Context, postingID string) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Invalidate(ctx, postingID); err != nil {
		s.logger.Warn().Err(err).Str("posting_id", postingID).Msg("failed to invalidate leaderboard cache")
	}
}

func monitorHooks() proctor.MonitorHooks {
	return proctor.MonitorHooks{
		OnTick: func(latency time.Duration) {
			observability.MonitorTickLatency().Observe(latency.Seconds())
		},
		OnSkippedTick: func() {
			observability.MonitorSkippedTicks().Inc()
		},
		OnViolation: func(ev proctor.ViolationEvent) {
			observability.Violations().WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()
		},
		OnReportDropped: func() {
			observability.ReportsDropped().Inc()
		},
		OnReportFailed: func(error) {
			observability.ReportFailures().Inc()
		},
	}
}

func closedStatus(record models.ProctoringSession) proctor.LiveStatus {
	updated := record.UpdatedAt
	if record.CompletedAt != nil {
		updated = *record.CompletedAt
	}
	return proctor.LiveStatus{
		SessionID: record.PublicID,
		Active:    false,
		Gaze:      proctor.GazeCenter,
		UpdatedAt: updated,
	}
}

func monitorError(err error) error {
	if errors.Is(err, proctor.ErrMonitorStopped) {
		return ErrSessionClosed
	}
	return err
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrSessionNotFound
	case errors.Is(err, repository.ErrSessionCompleted):
		return ErrSessionClosed
	default:
		return err
	}
}
