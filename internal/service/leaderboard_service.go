package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-proctor-api/internal/dto"
	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
)

const (
	leaderboardCachePrefix = "proctor:leaderboard:"
	maxLeaderboardTop      = 100
)

var (
	// ErrCandidateNotRanked indicates the candidate has no completed session for the posting.
	ErrCandidateNotRanked = errors.New("candidate has no completed session for posting")
	// ErrPostingRequired indicates an empty posting identifier.
	ErrPostingRequired = errors.New("posting id is required")
)

// LeaderboardService ranks completed sessions of a posting.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, postingID string, topN int) (dto.LeaderboardResponse, error)
	Compare(ctx context.Context, postingID, candidateID string) (dto.ComparisonResponse, error)
	Invalidate(ctx context.Context, postingID string) error
}

type leaderboardService struct {
	repo       repository.ProctoringSessionRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	defaultTop int
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewLeaderboardService builds the service. A nil cache disables caching.
func NewLeaderboardService(repo repository.ProctoringSessionRepository, cache *redis.Client, ttl time.Duration, defaultTop int, logger zerolog.Logger) LeaderboardService {
	if defaultTop <= 0 {
		defaultTop = 10
	}
	return &leaderboardService{
		repo:       repo,
		cache:      cache,
		cacheTTL:   ttl,
		defaultTop: defaultTop,
		logger:     logger.With().Str("component", "leaderboard_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-proctor-api/internal/service/leaderboard"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func leaderboardCacheKey(postingID string, topN int) string {
	return fmt.Sprintf("%s%s:%d", leaderboardCachePrefix, postingID, topN)
}

func (s *leaderboardService) Leaderboard(ctx context.Context, postingID string, topN int) (dto.LeaderboardResponse, error) {
	postingID = strings.TrimSpace(postingID)
	if postingID == "" {
		return dto.LeaderboardResponse{}, ErrPostingRequired
	}
	if topN <= 0 {
		topN = s.defaultTop
	}
	if topN > maxLeaderboardTop {
		topN = maxLeaderboardTop
	}

	cacheKey := leaderboardCacheKey(postingID, topN)
	ctx, span := s.tracer.Start(ctx, "leaderboard.build")
	span.SetAttributes(
		attribute.String("leaderboard.posting_id", postingID),
		attribute.Int("leaderboard.top_n", topN),
	)
	defer span.End()

	if s.cache != nil && s.cacheTTL > 0 {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("leaderboard.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
			span.RecordError(err)
		}
	}

	sessions, err := s.repo.ListCompletedByPosting(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_sessions_failed")
		return dto.LeaderboardResponse{}, err
	}

	board := proctor.BuildLeaderboard(postingID, standings(sessions), topN, s.now())
	span.SetAttributes(attribute.Int("leaderboard.total", board.TotalCandidates))
	response := dto.LeaderboardResponse{Leaderboard: board}

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}

func (s *leaderboardService) Compare(ctx context.Context, postingID, candidateID string) (dto.ComparisonResponse, error) {
	postingID = strings.TrimSpace(postingID)
	if postingID == "" {
		return dto.ComparisonResponse{}, ErrPostingRequired
	}

	sessions, err := s.repo.ListCompletedByPosting(ctx, postingID)
	if err != nil {
		return dto.ComparisonResponse{}, err
	}

	scores := make([]float64, 0, len(sessions))
	var (
		candidateScore float64
		found          bool
	)
	for _, st := range standings(sessions) {
		scores = append(scores, st.FinalScore)
		// the latest completed session counts when a candidate retook the assessment
		if st.CandidateID == candidateID {
			candidateScore = st.FinalScore
			found = true
		}
	}
	if !found {
		return dto.ComparisonResponse{}, ErrCandidateNotRanked
	}

	return dto.ComparisonResponse{
		PostingID:      postingID,
		CandidateID:    candidateID,
		PeerComparison: proctor.Compare(candidateScore, scores),
	}, nil
}

// Invalidate drops every cached leaderboard of the posting.
func (s *leaderboardService) Invalidate(ctx context.Context, postingID string) error {
	if s.cache == nil {
		return nil
	}
	pattern := leaderboardCachePrefix + postingID + ":*"
	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan leaderboard cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...).Err()
}

func standings(sessions []models.ProctoringSession) []proctor.Standing {
	out := make([]proctor.Standing, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, proctor.NewStanding(session.CandidateID, session.PublicID, session.Counters(), session.ScoreInputs()))
	}
	return out
}
