package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

// ErrSessionCompleted is returned when evidence is written to a completed session.
var ErrSessionCompleted = errors.New("proctoring session already completed")

// SessionCompletion carries the final verdict inputs written on completion.
type SessionCompletion struct {
	Counters    proctor.MalpracticeCounters
	Inputs      proctor.ScoreInputs
	CompletedAt time.Time
}

// ProctoringSessionRepository persists sessions, their violation log and snapshots.
type ProctoringSessionRepository interface {
	Create(ctx context.Context, session *models.ProctoringSession) error
	GetByPublicID(ctx context.Context, publicID string) (models.ProctoringSession, error)
	Checkpoint(ctx context.Context, publicID string, counters proctor.MalpracticeCounters) error
	Complete(ctx context.Context, publicID string, completion SessionCompletion) (models.ProctoringSession, error)
	UpdateAssessment(ctx context.Context, publicID string, confidence, applicationScore float64) (models.ProctoringSession, error)
	ListCompletedByPosting(ctx context.Context, postingID string) ([]models.ProctoringSession, error)
	ListActive(ctx context.Context) ([]models.ProctoringSession, error)
	CreateSnapshot(ctx context.Context, snapshot *models.SessionSnapshot) error
}

type proctoringSessionRepository struct {
	db *gorm.DB
}

// NewProctoringSessionRepository instantiates the repository.
func NewProctoringSessionRepository(db *gorm.DB) ProctoringSessionRepository {
	return &proctoringSessionRepository{db: db}
}

func (r *proctoringSessionRepository) Create(ctx context.Context, session *models.ProctoringSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func withLog(db *gorm.DB) *gorm.DB {
	return db.Preload("Violations", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sequence ASC")
	})
}

func (r *proctoringSessionRepository) GetByPublicID(ctx context.Context, publicID string) (models.ProctoringSession, error) {
	var session models.ProctoringSession
	err := withLog(r.db.WithContext(ctx)).
		Preload("Snapshots", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("captured_at ASC")
		}).
		Where("public_id = ?", publicID).
		First(&session).Error
	if err != nil {
		return models.ProctoringSession{}, err
	}
	return session, nil
}

// Checkpoint writes the counters and appends the log entries not stored yet.
func (r *proctoringSessionRepository) Checkpoint(ctx context.Context, publicID string, counters proctor.MalpracticeCounters) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := lockSession(tx, publicID)
		if err != nil {
			return err
		}
		if !session.Active() {
			return ErrSessionCompleted
		}
		return writeCounters(tx, session, counters, nil)
	})
}

func (r *proctoringSessionRepository) Complete(ctx context.Context, publicID string, completion SessionCompletion) (models.ProctoringSession, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := lockSession(tx, publicID)
		if err != nil {
			return err
		}
		if !session.Active() {
			return ErrSessionCompleted
		}

		completedAt := completion.CompletedAt.UTC()
		return writeCounters(tx, session, completion.Counters, map[string]interface{}{
			"status":            models.SessionStatusCompleted,
			"base_score":        completion.Inputs.BaseScore,
			"confidence":        completion.Inputs.Confidence,
			"application_score": completion.Inputs.ApplicationScore,
			"completed_at":      &completedAt,
		})
	})
	if err != nil {
		return models.ProctoringSession{}, err
	}
	return r.GetByPublicID(ctx, publicID)
}

func (r *proctoringSessionRepository) UpdateAssessment(ctx context.Context, publicID string, confidence, applicationScore float64) (models.ProctoringSession, error) {
	result := r.db.WithContext(ctx).Model(&models.ProctoringSession{}).
		Where("public_id = ?", publicID).
		Updates(map[string]interface{}{
			"confidence":        confidence,
			"application_score": applicationScore,
		})
	if result.Error != nil {
		return models.ProctoringSession{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ProctoringSession{}, gorm.ErrRecordNotFound
	}
	return r.GetByPublicID(ctx, publicID)
}

// ListCompletedByPosting returns completed sessions in completion order,
// which is the input order the leaderboard ranks ties by.
func (r *proctoringSessionRepository) ListCompletedByPosting(ctx context.Context, postingID string) ([]models.ProctoringSession, error) {
	var sessions []models.ProctoringSession
	err := withLog(r.db.WithContext(ctx)).
		Where("posting_id = ?", postingID).
		Where("status = ?", models.SessionStatusCompleted).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *proctoringSessionRepository) ListActive(ctx context.Context) ([]models.ProctoringSession, error) {
	var sessions []models.ProctoringSession
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.SessionStatusActive).
		Order("id ASC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *proctoringSessionRepository) CreateSnapshot(ctx context.Context, snapshot *models.SessionSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func lockSession(tx *gorm.DB, publicID string) (models.ProctoringSession, error) {
	query := tx
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var session models.ProctoringSession
	if err := query.Where("public_id = ?", publicID).First(&session).Error; err != nil {
		return models.ProctoringSession{}, err
	}
	return session, nil
}

// writeCounters rejects regressions, then stores the counters together with
// any extra columns and inserts log entries from the stored length onward.
func writeCounters(tx *gorm.DB, session models.ProctoringSession, counters proctor.MalpracticeCounters, extra map[string]interface{}) error {
	if session.Regresses(counters) {
		return proctor.ErrCounterRegression
	}

	updates := map[string]interface{}{
		"tab_switches":         counters.TabSwitches,
		"no_face_events":       counters.NoFaceEvents,
		"multi_face_events":    counters.MultiFaceEvents,
		"ai_answer_detections": counters.AIAnswerDetections,
		"voice_anomalies":      counters.VoiceAnomalies,
		"violation_count":      len(counters.Log),
		"flagged":              counters.Flagged,
	}
	for k, v := range extra {
		updates[k] = v
	}

	if err := tx.Model(&models.ProctoringSession{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
		return err
	}

	pending := counters.Log[session.ViolationCount:]
	if len(pending) == 0 {
		return nil
	}
	records := make([]models.ViolationRecord, 0, len(pending))
	for i, ev := range pending {
		records = append(records, models.NewViolationRecord(session.ID, session.ViolationCount+i, ev))
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(records, 100).Error
}
