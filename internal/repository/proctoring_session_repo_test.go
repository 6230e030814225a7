package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

func setupProctoringDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ProctoringSession{}, &models.ViolationRecord{}, &models.SessionSnapshot{}))
	return db
}

func newSession(t *testing.T, repo ProctoringSessionRepository, posting, candidate string) models.ProctoringSession {
	t.Helper()
	session := models.ProctoringSession{
		PublicID:    uuid.NewString(),
		CandidateID: candidate,
		PostingID:   posting,
		Status:      models.SessionStatusActive,
		BaseScore:   100,
		StartedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), &session))
	return session
}

func logEntry(kind proctor.ViolationType, sev proctor.Severity, at time.Time) proctor.ViolationEvent {
	return proctor.ViolationEvent{Type: kind, Severity: sev, DetectedAt: at, Details: string(kind)}
}

func TestCheckpointAppendsLogIdempotently(t *testing.T) {
	db := setupProctoringDB(t)
	repo := NewProctoringSessionRepository(db)
	ctx := context.Background()
	session := newSession(t, repo, "posting-1", "cand-1")

	at := session.StartedAt
	counters := proctor.MalpracticeCounters{
		NoFaceEvents: 1,
		Log:          []proctor.ViolationEvent{logEntry(proctor.ViolationNoFace, proctor.SeverityHigh, at)},
	}
	require.NoError(t, repo.Checkpoint(ctx, session.PublicID, counters))
	require.NoError(t, repo.Checkpoint(ctx, session.PublicID, counters))

	counters.TabSwitches = 1
	ev := logEntry(proctor.ViolationTabSwitch, proctor.SeverityLow, at.Add(time.Second))
	ev.Metadata = map[string]any{"total": 1}
	counters.Log = append(counters.Log, ev)
	require.NoError(t, repo.Checkpoint(ctx, session.PublicID, counters))

	stored, err := repo.GetByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.ViolationCount)
	require.Len(t, stored.Violations, 2)
	require.Equal(t, 0, stored.Violations[0].Sequence)
	require.Equal(t, string(proctor.ViolationTabSwitch), stored.Violations[1].Type)

	restored := stored.Counters()
	require.Equal(t, 1, restored.TabSwitches)
	require.Equal(t, 1, restored.NoFaceEvents)
	require.Equal(t, float64(1), restored.Log[1].Metadata["total"])
}

func TestCheckpointRejectsRegression(t *testing.T) {
	db := setupProctoringDB(t)
	repo := NewProctoringSessionRepository(db)
	ctx := context.Background()
	session := newSession(t, repo, "posting-1", "cand-1")

	at := session.StartedAt
	counters := proctor.MalpracticeCounters{
		TabSwitches: 2,
		Flagged:     true,
		Log: []proctor.ViolationEvent{
			logEntry(proctor.ViolationTabSwitch, proctor.SeverityLow, at),
			logEntry(proctor.ViolationTabSwitch, proctor.SeverityMedium, at),
		},
	}
	require.NoError(t, repo.Checkpoint(ctx, session.PublicID, counters))

	lower := counters.Clone()
	lower.TabSwitches = 1
	require.ErrorIs(t, repo.Checkpoint(ctx, session.PublicID, lower), proctor.ErrCounterRegression)

	shorter := counters.Clone()
	shorter.Log = shorter.Log[:1]
	require.ErrorIs(t, repo.Checkpoint(ctx, session.PublicID, shorter), proctor.ErrCounterRegression)

	unflagged := counters.Clone()
	unflagged.Flagged = false
	require.ErrorIs(t, repo.Checkpoint(ctx, session.PublicID, unflagged), proctor.ErrCounterRegression)

	stored, err := repo.GetByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TabSwitches)
	require.True(t, stored.Flagged)
}

func TestCheckpointUnknownSession(t *testing.T) {
	repo := NewProctoringSessionRepository(setupProctoringDB(t))
	err := repo.Checkpoint(context.Background(), "missing", proctor.MalpracticeCounters{})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCompleteClosesSession(t *testing.T) {
	db := setupProctoringDB(t)
	repo := NewProctoringSessionRepository(db)
	ctx := context.Background()
	session := newSession(t, repo, "posting-1", "cand-1")

	completedAt := session.StartedAt.Add(30 * time.Minute)
	done, err := repo.Complete(ctx, session.PublicID, SessionCompletion{
		Counters:    proctor.MalpracticeCounters{VoiceAnomalies: 1, Log: []proctor.ViolationEvent{logEntry(proctor.ViolationMultipleVoices, proctor.SeverityHigh, completedAt)}},
		Inputs:      proctor.ScoreInputs{BaseScore: 88, Confidence: 90, ApplicationScore: 70},
		CompletedAt: completedAt,
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, done.Status)
	require.Equal(t, float64(88), done.BaseScore)
	require.NotNil(t, done.CompletedAt)
	require.Len(t, done.Violations, 1)

	require.ErrorIs(t, repo.Checkpoint(ctx, session.PublicID, done.Counters()), ErrSessionCompleted)
	_, err = repo.Complete(ctx, session.PublicID, SessionCompletion{CompletedAt: completedAt})
	require.ErrorIs(t, err, ErrSessionCompleted)
}

func TestListCompletedByPostingOrdersByCompletion(t *testing.T) {
	db := setupProctoringDB(t)
	repo := NewProctoringSessionRepository(db)
	ctx := context.Background()

	first := newSession(t, repo, "posting-9", "cand-a")
	second := newSession(t, repo, "posting-9", "cand-b")
	newSession(t, repo, "posting-9", "cand-active")
	other := newSession(t, repo, "posting-other", "cand-c")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.Complete(ctx, second.PublicID, SessionCompletion{Inputs: proctor.ScoreInputs{BaseScore: 100}, CompletedAt: base})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, first.PublicID, SessionCompletion{Inputs: proctor.ScoreInputs{BaseScore: 100}, CompletedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, other.PublicID, SessionCompletion{Inputs: proctor.ScoreInputs{BaseScore: 100}, CompletedAt: base})
	require.NoError(t, err)

	sessions, err := repo.ListCompletedByPosting(ctx, "posting-9")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "cand-b", sessions[0].CandidateID)
	require.Equal(t, "cand-a", sessions[1].CandidateID)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "cand-active", active[0].CandidateID)
}

func TestUpdateAssessmentAndSnapshots(t *testing.T) {
	db := setupProctoringDB(t)
	repo := NewProctoringSessionRepository(db)
	ctx := context.Background()
	session := newSession(t, repo, "posting-1", "cand-1")

	updated, err := repo.UpdateAssessment(ctx, session.PublicID, 92, 85)
	require.NoError(t, err)
	require.Equal(t, float64(92), updated.Confidence)
	require.Equal(t, float64(85), updated.ApplicationScore)

	_, err = repo.UpdateAssessment(ctx, "missing", 1, 1)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.CreateSnapshot(ctx, &models.SessionSnapshot{
		SessionID:   session.ID,
		URL:         "https://cdn.example.com/snap.jpg",
		ContentType: "image/jpeg",
		SizeBytes:   128,
		CapturedAt:  session.StartedAt,
	}))

	stored, err := repo.GetByPublicID(ctx, session.PublicID)
	require.NoError(t, err)
	require.Len(t, stored.Snapshots, 1)
	require.Equal(t, "image/jpeg", stored.Snapshots[0].ContentType)
}
