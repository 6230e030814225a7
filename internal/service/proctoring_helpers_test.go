package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proctor-api/internal/database"
	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
	"github.com/noah-isme/gema-proctor-api/pkg/ai"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newSessionRepo(t *testing.T) repository.ProctoringSessionRepository {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ProctoringSession{}, &models.ViolationRecord{}, &models.SessionSnapshot{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewProctoringSessionRepository(db)
}

// quietConfig never ticks on its own so tests see only the evidence they report.
func quietConfig() ProctoringConfig {
	cfg := DefaultProctoringConfig()
	cfg.Monitor.TickInterval = time.Hour
	cfg.Monitor.CheckpointInterval = time.Hour
	return cfg
}

type stubClassifier struct {
	mu      sync.Mutex
	verdict ai.AuthorshipVerdict
	err     error
	calls   int
}

func (s *stubClassifier) set(verdict ai.AuthorshipVerdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = verdict
}

func (s *stubClassifier) Classify(ctx context.Context, answer string) (ai.AuthorshipVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.verdict, s.err
}

type recordingSink struct {
	mu      sync.Mutex
	reports []proctor.ViolationReport
}

func (r *recordingSink) Report(ctx context.Context, report proctor.ViolationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type snapshotStoreStub struct {
	mu       sync.Mutex
	uploaded map[string]int
}

func (s *snapshotStoreStub) UploadSnapshot(ctx context.Context, sessionID string, capturedAt time.Time, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploaded == nil {
		s.uploaded = make(map[string]int)
	}
	s.uploaded[sessionID] += len(data)
	return "https://cdn.example.com/" + sessionID + "/" + capturedAt.Format("150405") + ".png", nil
}

type invalidatorStub struct {
	mu       sync.Mutex
	postings []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, postingID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.postings = append(i.postings, postingID)
	return nil
}
