package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor-api/internal/dto"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

func completeSession(t *testing.T, app *fiber.App, candidate, posting string, base float64) {
	t.Helper()
	sessionID := startSession(t, app, candidate, posting, base)
	resp := doJSON(t, app, http.MethodPost, apiPrefix+"/sessions/"+sessionID+"/complete", candidate, "candidate", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestLeaderboardHandler_RanksCompletedSessions(t *testing.T) {
	app := newProctoringApp(t, nil)
	completeSession(t, app, "cand-a", "post-9", 80)
	completeSession(t, app, "cand-b", "post-9", 95)
	startSession(t, app, "cand-c", "post-9", 100)

	resp := doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/leaderboard?top=1", "rev-1", "recruiter", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var board proctor.Leaderboard
	out := readEnvelope(t, resp, &board)
	require.True(t, out.Success)
	require.Equal(t, 2, board.TotalCandidates)
	require.Len(t, board.Entries, 1)
	require.Equal(t, "cand-b", board.Entries[0].CandidateID)
	require.Equal(t, "gold", board.Entries[0].Medal)
	require.JSONEq(t, `{"cache_hit":false,"top_n":1}`, string(out.Meta))

	resp = doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/leaderboard", "rev-1", "admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateContract(t, compileSchema(t, "leaderboard.schema.json"), resp)
}

func TestLeaderboardHandler_Comparison(t *testing.T) {
	app := newProctoringApp(t, nil)
	completeSession(t, app, "cand-a", "post-9", 80)
	completeSession(t, app, "cand-b", "post-9", 95)

	resp := doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/candidates/cand-a/comparison", "rev-1", "recruiter", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var comparison dto.ComparisonResponse
	readEnvelope(t, resp, &comparison)
	require.Equal(t, "cand-a", comparison.CandidateID)
	require.Equal(t, 2, comparison.Rank)
	require.Equal(t, 2, comparison.TotalCandidates)

	resp = doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/candidates/cand-z/comparison", "rev-1", "recruiter", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestLeaderboardHandler_Guards(t *testing.T) {
	app := newProctoringApp(t, nil)

	resp := doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/leaderboard", "cand-a", "candidate", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/leaderboard?top=abc", "rev-1", "recruiter", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, apiPrefix+"/postings/post-9/leaderboard?top=-2", "rev-1", "recruiter", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
