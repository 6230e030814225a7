package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

// Session lifecycle states.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// ProctoringSession is the persisted record of one monitored assessment.
// Counter columns mirror proctor.MalpracticeCounters and only ever grow.
type ProctoringSession struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	PublicID           string            `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	CandidateID        string            `gorm:"size:64;index;not null" json:"candidate_id"`
	PostingID          string            `gorm:"size:64;index;not null" json:"posting_id"`
	Status             string            `gorm:"size:16;index;not null;default:active" json:"status"`
	BaseScore          float64           `gorm:"not null;default:100" json:"base_score"`
	Confidence         float64           `gorm:"not null;default:0" json:"confidence"`
	ApplicationScore   float64           `gorm:"not null;default:0" json:"application_score"`
	TabSwitches        int               `gorm:"not null;default:0" json:"tab_switches"`
	NoFaceEvents       int               `gorm:"not null;default:0" json:"no_face_events"`
	MultiFaceEvents    int               `gorm:"not null;default:0" json:"multi_face_events"`
	AIAnswerDetections int               `gorm:"not null;default:0" json:"ai_answer_detections"`
	VoiceAnomalies     int               `gorm:"not null;default:0" json:"voice_anomalies"`
	ViolationCount     int               `gorm:"not null;default:0" json:"violation_count"`
	Flagged            bool              `gorm:"not null;default:false" json:"flagged"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        *time.Time        `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	Violations         []ViolationRecord `gorm:"foreignKey:SessionID" json:"violations,omitempty"`
	Snapshots          []SessionSnapshot `gorm:"foreignKey:SessionID" json:"snapshots,omitempty"`
}

// ViolationRecord is one entry of a session's violation log. Sequence is the
// entry's position in the log; the pair (session, sequence) is unique so
// replayed checkpoints never duplicate entries.
type ViolationRecord struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	SessionID  uint              `gorm:"not null;uniqueIndex:idx_violation_session_seq" json:"session_id"`
	Sequence   int               `gorm:"not null;uniqueIndex:idx_violation_session_seq" json:"sequence"`
	Type       string            `gorm:"size:32;index;not null" json:"type"`
	Severity   string            `gorm:"size:8;not null" json:"severity"`
	Details    string            `gorm:"type:text" json:"details"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	DetectedAt time.Time         `gorm:"index" json:"detected_at"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SessionSnapshot references an evidence image stored off-site.
type SessionSnapshot struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   uint      `gorm:"index;not null" json:"session_id"`
	URL         string    `gorm:"size:512;not null" json:"url"`
	ContentType string    `gorm:"size:64" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CapturedAt  time.Time `json:"captured_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewViolationRecord maps a log entry at position seq to its row.
func NewViolationRecord(sessionID uint, seq int, ev proctor.ViolationEvent) ViolationRecord {
	var meta datatypes.JSONMap
	if len(ev.Metadata) > 0 {
		meta = make(datatypes.JSONMap, len(ev.Metadata))
		for k, v := range ev.Metadata {
			meta[k] = v
		}
	}
	return ViolationRecord{
		SessionID:  sessionID,
		Sequence:   seq,
		Type:       string(ev.Type),
		Severity:   string(ev.Severity),
		Details:    ev.Details,
		Metadata:   meta,
		DetectedAt: ev.DetectedAt.UTC(),
	}
}

// Event converts the row back into a log entry.
func (r ViolationRecord) Event() proctor.ViolationEvent {
	var meta map[string]any
	if len(r.Metadata) > 0 {
		meta = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
	}
	return proctor.ViolationEvent{
		Type:       proctor.ViolationType(r.Type),
		Severity:   proctor.Severity(r.Severity),
		DetectedAt: r.DetectedAt,
		Details:    r.Details,
		Metadata:   meta,
	}
}

// Counters rebuilds the malpractice counters. Violations must be loaded in
// sequence order for the log to be complete.
func (s ProctoringSession) Counters() proctor.MalpracticeCounters {
	log := make([]proctor.ViolationEvent, 0, len(s.Violations))
	for _, r := range s.Violations {
		log = append(log, r.Event())
	}
	return proctor.MalpracticeCounters{
		TabSwitches:        s.TabSwitches,
		NoFaceEvents:       s.NoFaceEvents,
		MultiFaceEvents:    s.MultiFaceEvents,
		AIAnswerDetections: s.AIAnswerDetections,
		VoiceAnomalies:     s.VoiceAnomalies,
		Log:                log,
		Flagged:            s.Flagged,
	}
}

// ScoreInputs returns the non-proctoring signals stored with the session.
func (s ProctoringSession) ScoreInputs() proctor.ScoreInputs {
	return proctor.ScoreInputs{
		BaseScore:        s.BaseScore,
		Confidence:       s.Confidence,
		ApplicationScore: s.ApplicationScore,
	}
}

// Regresses reports whether persisting next would lower any stored counter,
// shorten the log or clear the flag.
func (s ProctoringSession) Regresses(next proctor.MalpracticeCounters) bool {
	return next.TabSwitches < s.TabSwitches ||
		next.NoFaceEvents < s.NoFaceEvents ||
		next.MultiFaceEvents < s.MultiFaceEvents ||
		next.AIAnswerDetections < s.AIAnswerDetections ||
		next.VoiceAnomalies < s.VoiceAnomalies ||
		len(next.Log) < s.ViolationCount ||
		(s.Flagged && !next.Flagged)
}

// Active reports whether the session still accepts evidence.
func (s ProctoringSession) Active() bool {
	return s.Status == SessionStatusActive
}
