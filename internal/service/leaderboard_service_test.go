package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
)

func seedCompletedSession(t *testing.T, repo repository.ProctoringSessionRepository, postingID, candidateID string, base float64, completedAt time.Time) string {
	t.Helper()
	ctx := context.Background()
	session := models.ProctoringSession{
		PublicID:    uuid.NewString(),
		CandidateID: candidateID,
		PostingID:   postingID,
		Status:      models.SessionStatusActive,
		BaseScore:   base,
		StartedAt:   completedAt.Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, &session))
	_, err := repo.Complete(ctx, session.PublicID, repository.SessionCompletion{
		Inputs:      proctor.ScoreInputs{BaseScore: base},
		CompletedAt: completedAt,
	})
	require.NoError(t, err)
	return session.PublicID
}

func TestLeaderboardServiceRanksAndCaches(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	repo := newSessionRepo(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedCompletedSession(t, repo, "post-1", "cand-a", 90, now)
	seedCompletedSession(t, repo, "post-1", "cand-b", 100, now.Add(time.Minute))
	seedCompletedSession(t, repo, "post-1", "cand-c", 90, now.Add(2*time.Minute))
	seedCompletedSession(t, repo, "post-2", "cand-z", 50, now)

	svc := NewLeaderboardService(repo, client, time.Minute, 10, quietLogger())
	ctx := context.Background()

	board, err := svc.Leaderboard(ctx, "post-1", 2)
	require.NoError(t, err)
	require.False(t, board.CacheHit)
	require.Equal(t, 3, board.TotalCandidates)
	require.Len(t, board.Entries, 2)
	require.Len(t, board.AllEntries, 3)

	order := make([]string, 0, len(board.AllEntries))
	for _, entry := range board.AllEntries {
		order = append(order, entry.CandidateID)
	}
	require.Equal(t, []string{"cand-b", "cand-a", "cand-c"}, order)
	require.Equal(t, "gold", board.AllEntries[0].Medal)
	require.Equal(t, 3, board.AllEntries[2].Rank)

	cached, err := svc.Leaderboard(ctx, "post-1", 2)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, board.TotalCandidates, cached.TotalCandidates)

	seedCompletedSession(t, repo, "post-1", "cand-d", 95, now.Add(3*time.Minute))
	require.NoError(t, svc.Invalidate(ctx, "post-1"))

	fresh, err := svc.Leaderboard(ctx, "post-1", 2)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 4, fresh.TotalCandidates)
	require.Equal(t, "cand-d", fresh.Entries[1].CandidateID)
}

func TestLeaderboardServiceInvalidateKeepsOtherPostings(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	repo := newSessionRepo(t)
	now := time.Now().UTC()
	seedCompletedSession(t, repo, "post-1", "cand-a", 80, now)
	seedCompletedSession(t, repo, "post-2", "cand-b", 70, now)

	svc := NewLeaderboardService(repo, client, time.Minute, 5, quietLogger())
	ctx := context.Background()

	_, err := svc.Leaderboard(ctx, "post-1", 0)
	require.NoError(t, err)
	_, err = svc.Leaderboard(ctx, "post-2", 0)
	require.NoError(t, err)

	require.True(t, server.Exists(leaderboardCacheKey("post-1", 5)))
	require.True(t, server.Exists(leaderboardCacheKey("post-2", 5)))

	require.NoError(t, svc.Invalidate(ctx, "post-1"))
	require.False(t, server.Exists(leaderboardCacheKey("post-1", 5)))
	require.True(t, server.Exists(leaderboardCacheKey("post-2", 5)))
}

func TestLeaderboardServiceCompare(t *testing.T) {
	repo := newSessionRepo(t)
	now := time.Now().UTC()
	seedCompletedSession(t, repo, "post-1", "cand-a", 90, now)
	seedCompletedSession(t, repo, "post-1", "cand-b", 100, now.Add(time.Minute))
	seedCompletedSession(t, repo, "post-1", "cand-c", 90, now.Add(2*time.Minute))

	svc := NewLeaderboardService(repo, nil, 0, 10, quietLogger())
	ctx := context.Background()

	comparison, err := svc.Compare(ctx, "post-1", "cand-b")
	require.NoError(t, err)
	require.Equal(t, "cand-b", comparison.CandidateID)
	require.Equal(t, 100.0, comparison.CandidateScore)
	require.Equal(t, 1, comparison.Rank)
	require.Equal(t, 3, comparison.TotalCandidates)
	require.Equal(t, 67, comparison.Percentile)
	require.Equal(t, 93.3, comparison.AverageScore)
	require.Equal(t, 90.0, comparison.Median)
	require.Equal(t, proctor.PerformanceAboveAverage, comparison.Performance)

	_, err = svc.Compare(ctx, "post-1", "cand-x")
	require.ErrorIs(t, err, ErrCandidateNotRanked)

	_, err = svc.Leaderboard(ctx, " ", 3)
	require.ErrorIs(t, err, ErrPostingRequired)
}
