package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor-api/internal/dto"
	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/pkg/ai"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestProctoringServiceRecordsEvidenceAndCompletes(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)
	classifier := &stubClassifier{}
	sink := &recordingSink{}
	invalidator := &invalidatorStub{}

	svc := NewProctoringService(quietConfig(), ProctoringDeps{
		Repo:        repo,
		Classifier:  classifier,
		Sink:        sink,
		Leaderboard: invalidator,
		Logger:      quietLogger(),
	})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)
	require.NotEmpty(t, started.SessionID)
	require.True(t, started.Status.Active)

	_, err = svc.ReportTabSwitch(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)
	_, err = svc.ReportTabSwitch(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)

	_, err = svc.ReportVoice(ctx, started.SessionID, "cand-1", dto.VoiceRequest{Speakers: 2, Confidence: 0.9})
	require.NoError(t, err)
	_, err = svc.ReportVoice(ctx, started.SessionID, "cand-1", dto.VoiceRequest{Speakers: 1, Confidence: 0.9})
	require.NoError(t, err)

	classifier.set(ai.AuthorshipVerdict{AIGenerated: true, Confidence: 55, Method: ai.MethodPattern})
	_, err = svc.ReportAnswer(ctx, started.SessionID, "cand-1", dto.AnswerRequest{Answer: "I think so."})
	require.NoError(t, err)

	classifier.set(ai.AuthorshipVerdict{AIGenerated: true, Confidence: 90, Reasoning: "<b>formal</b> tone", Method: ai.MethodOpenAI})
	status, err := svc.ReportAnswer(ctx, started.SessionID, "cand-1", dto.AnswerRequest{Answer: "Certainly, furthermore."})
	require.NoError(t, err)
	require.True(t, status.Active)

	completed, err := svc.Complete(ctx, started.SessionID, "cand-1", dto.CompleteSessionRequest{
		Confidence:       floatPtr(80),
		ApplicationScore: floatPtr(70),
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, completed.Status)

	record, err := repo.GetByPublicID(ctx, started.SessionID)
	require.NoError(t, err)
	require.Equal(t, 2, record.TabSwitches)
	require.Equal(t, 1, record.VoiceAnomalies)
	require.Equal(t, 1, record.AIAnswerDetections)
	require.Len(t, record.Violations, 4)
	require.False(t, record.Flagged)
	require.Equal(t, 80.0, record.Confidence)
	require.Equal(t, 70.0, record.ApplicationScore)
	require.Equal(t, 100.0, record.BaseScore)

	aiEntry := record.Violations[3]
	require.Equal(t, string(proctor.ViolationAIAnswer), aiEntry.Type)
	require.Equal(t, string(proctor.SeverityHigh), aiEntry.Severity)
	require.Contains(t, aiEntry.Details, "formal tone")
	require.NotContains(t, aiEntry.Details, "<b>")

	require.Eventually(t, func() bool { return sink.count() == 4 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"post-1"}, invalidator.postings)

	_, err = svc.ReportTabSwitch(ctx, started.SessionID, "cand-1")
	require.ErrorIs(t, err, ErrSessionClosed)

	_, err = svc.Complete(ctx, started.SessionID, "cand-1", dto.CompleteSessionRequest{})
	require.ErrorIs(t, err, ErrSessionClosed)

	live, err := svc.LiveStatus(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)
	require.False(t, live.Active)
}

func TestProctoringServiceCompletionFlag(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)
	svc := NewProctoringService(quietConfig(), ProctoringDeps{Repo: repo, Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	cases := []struct {
		voices  int
		flagged bool
	}{
		{voices: 2, flagged: false},
		{voices: 3, flagged: true},
	}

	for _, tc := range cases {
		started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
		require.NoError(t, err)
		for i := 0; i < tc.voices; i++ {
			_, err = svc.ReportVoice(ctx, started.SessionID, "cand-1", dto.VoiceRequest{Speakers: 3, Confidence: 0.7})
			require.NoError(t, err)
		}

		report, err := svc.Report(ctx, started.SessionID)
		require.NoError(t, err)
		require.Equal(t, tc.voices, report.Report.Breakdown.VoiceAnomalies)
		require.Equal(t, tc.flagged, report.Report.Flagged)

		_, err = svc.Complete(ctx, started.SessionID, "cand-1", dto.CompleteSessionRequest{})
		require.NoError(t, err)

		record, err := repo.GetByPublicID(ctx, started.SessionID)
		require.NoError(t, err)
		require.Equal(t, tc.flagged, record.Flagged)
		require.Equal(t, models.SessionStatusCompleted, record.Status)
	}
}

func TestProctoringServiceOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewProctoringService(quietConfig(), ProctoringDeps{Repo: newSessionRepo(t), Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)

	err = svc.PushFrame(ctx, started.SessionID, "cand-2", proctor.LandmarkFrame{})
	require.ErrorIs(t, err, ErrSessionForbidden)

	_, err = svc.LiveStatus(ctx, started.SessionID, "cand-2")
	require.ErrorIs(t, err, ErrSessionForbidden)

	_, err = svc.ReportTabSwitch(ctx, "missing", "cand-1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Report(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProctoringServiceValidatesRequests(t *testing.T) {
	ctx := context.Background()
	svc := NewProctoringService(quietConfig(), ProctoringDeps{Repo: newSessionRepo(t), Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	_, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "  "})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	_, err = svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1", BaseScore: floatPtr(140)})
	require.ErrorAs(t, err, &verrs)

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1", BaseScore: floatPtr(85)})
	require.NoError(t, err)

	_, err = svc.ReportVoice(ctx, started.SessionID, "cand-1", dto.VoiceRequest{Speakers: 2, Confidence: 90})
	require.ErrorAs(t, err, &verrs)

	_, err = svc.ReportAnswer(ctx, started.SessionID, "cand-1", dto.AnswerRequest{})
	require.ErrorAs(t, err, &verrs)
}

func TestProctoringServiceDetectsFacesFromFrames(t *testing.T) {
	ctx := context.Background()
	cfg := quietConfig()
	cfg.Monitor.TickInterval = 10 * time.Millisecond
	svc := NewProctoringService(cfg, ProctoringDeps{Repo: newSessionRepo(t), Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)

	frame := proctor.LandmarkFrame{Detections: []proctor.DetectionBox{
		{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.3, Confidence: 0.9},
		{X: 0.6, Y: 0.1, Width: 0.2, Height: 0.3, Confidence: 0.8},
	}}

	require.Eventually(t, func() bool {
		if err := svc.PushFrame(ctx, started.SessionID, "cand-1", frame); err != nil {
			return false
		}
		report, err := svc.Report(ctx, started.SessionID)
		return err == nil && report.Report.Breakdown.MultiFaceEvents > 0
	}, 2*time.Second, 20*time.Millisecond)

	status, err := svc.LiveStatus(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)
	require.Equal(t, 2, status.FaceCount)
	require.False(t, status.FaceOK)
}

func TestProctoringServiceResumesAfterShutdown(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)

	first := NewProctoringService(quietConfig(), ProctoringDeps{Repo: repo, Logger: quietLogger()})
	started, err := first.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)
	_, err = first.ReportTabSwitch(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(ctx))

	_, err = first.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.ErrorIs(t, err, ErrServiceShuttingDown)

	stored, err := repo.GetByPublicID(ctx, started.SessionID)
	require.NoError(t, err)
	require.True(t, stored.Active())
	require.Equal(t, 1, stored.TabSwitches)

	second := NewProctoringService(quietConfig(), ProctoringDeps{Repo: repo, Logger: quietLogger()})
	defer func() { _ = second.Shutdown(ctx) }()

	_, err = second.ReportTabSwitch(ctx, started.SessionID, "cand-1")
	require.NoError(t, err)
	_, err = second.Complete(ctx, started.SessionID, "cand-1", dto.CompleteSessionRequest{})
	require.NoError(t, err)

	stored, err = repo.GetByPublicID(ctx, started.SessionID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TabSwitches)
	require.Len(t, stored.Violations, 2)
	require.True(t, strings.HasSuffix(stored.Violations[1].Details, "Total switches: 2"))
}

func TestProctoringServiceSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)
	store := &snapshotStoreStub{}
	cfg := quietConfig()
	cfg.SnapshotInterval = time.Hour

	svc := NewProctoringService(cfg, ProctoringDeps{Repo: repo, Snapshots: store, Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)

	err = svc.UploadSnapshot(ctx, started.SessionID, "cand-1", []byte("plain text"), time.Time{})
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	require.NoError(t, svc.UploadSnapshot(ctx, started.SessionID, "cand-1", pngHeader, time.Now()))

	err = svc.UploadSnapshot(ctx, started.SessionID, "cand-1", pngHeader, time.Now())
	require.ErrorIs(t, err, ErrSnapshotRateLimited)

	require.Eventually(t, func() bool {
		report, err := svc.Report(ctx, started.SessionID)
		return err == nil && len(report.Snapshots) == 1
	}, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	require.Equal(t, len(pngHeader), store.uploaded[started.SessionID])
	store.mu.Unlock()
}

func TestProctoringServiceSnapshotsDisabled(t *testing.T) {
	ctx := context.Background()
	svc := NewProctoringService(quietConfig(), ProctoringDeps{Repo: newSessionRepo(t), Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-1"})
	require.NoError(t, err)

	err = svc.UploadSnapshot(ctx, started.SessionID, "cand-1", pngHeader, time.Now())
	require.ErrorIs(t, err, ErrSnapshotsDisabled)
}

func TestProctoringServiceUpdateAssessment(t *testing.T) {
	ctx := context.Background()
	repo := newSessionRepo(t)
	invalidator := &invalidatorStub{}
	svc := NewProctoringService(quietConfig(), ProctoringDeps{Repo: repo, Leaderboard: invalidator, Logger: quietLogger()})
	defer func() { _ = svc.Shutdown(ctx) }()

	started, err := svc.Start(ctx, "cand-1", dto.StartSessionRequest{PostingID: "post-9"})
	require.NoError(t, err)

	summary, err := svc.UpdateAssessment(ctx, started.SessionID, dto.AssessmentRequest{Confidence: 75, ApplicationScore: 65})
	require.NoError(t, err)
	require.Equal(t, 75.0, summary.Confidence)
	require.Empty(t, invalidator.postings)

	_, err = svc.Complete(ctx, started.SessionID, "cand-1", dto.CompleteSessionRequest{})
	require.NoError(t, err)

	record, err := repo.GetByPublicID(ctx, started.SessionID)
	require.NoError(t, err)
	require.Equal(t, 75.0, record.Confidence)
	require.Equal(t, 65.0, record.ApplicationScore)

	_, err = svc.UpdateAssessment(ctx, started.SessionID, dto.AssessmentRequest{Confidence: 90, ApplicationScore: 65})
	require.NoError(t, err)
	require.Equal(t, []string{"post-9", "post-9"}, invalidator.postings)

	_, err = svc.UpdateAssessment(ctx, "missing", dto.AssessmentRequest{Confidence: 1})
	require.ErrorIs(t, err, ErrSessionNotFound)
}
