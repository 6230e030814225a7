package dto

import (
	"time"

	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

// StartSessionRequest opens a monitored session for the authenticated candidate.
type StartSessionRequest struct {
	PostingID string   `json:"posting_id" validate:"required,max=64"`
	BaseScore *float64 `json:"base_score" validate:"omitempty,gte=0,lte=100"`
}

// SessionStartedResponse is returned to the candidate when monitoring begins.
type SessionStartedResponse struct {
	SessionID string             `json:"session_id"`
	PostingID string             `json:"posting_id"`
	StartedAt time.Time          `json:"started_at"`
	Status    proctor.LiveStatus `json:"status"`
}

// FrameRequest carries one analysed camera frame from the landmark model.
type FrameRequest struct {
	Landmarks   []proctor.Point        `json:"landmarks" validate:"max=512"`
	Detections  []proctor.DetectionBox `json:"detections" validate:"max=16"`
	Blendshapes []proctor.Blendshape   `json:"blendshapes" validate:"max=64"`
	CapturedAt  *time.Time             `json:"captured_at"`
}

// Frame converts the request into a landmark frame stamped with receivedAt
// when the client omitted its capture time.
func (r FrameRequest) Frame(receivedAt time.Time) proctor.LandmarkFrame {
	at := receivedAt
	if r.CapturedAt != nil && !r.CapturedAt.IsZero() {
		at = r.CapturedAt.UTC()
	}
	return proctor.LandmarkFrame{
		Landmarks:   r.Landmarks,
		Detections:  r.Detections,
		Blendshapes: r.Blendshapes,
		CapturedAt:  at,
	}
}

// AnswerRequest submits a free-text answer for authorship screening.
type AnswerRequest struct {
	QuestionID string `json:"question_id" validate:"omitempty,max=64"`
	Answer     string `json:"answer" validate:"required,max=20000"`
}

// VoiceRequest reports the speaker analysis of the candidate's audio.
// Confidence is a 0..1 fraction.
type VoiceRequest struct {
	Speakers   int     `json:"speakers" validate:"required,gte=1,lte=16"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// CompleteSessionRequest ends a session. Omitted scores keep their stored values.
type CompleteSessionRequest struct {
	BaseScore        *float64 `json:"base_score" validate:"omitempty,gte=0,lte=100"`
	Confidence       *float64 `json:"confidence" validate:"omitempty,gte=0,lte=100"`
	ApplicationScore *float64 `json:"application_score" validate:"omitempty,gte=0,lte=100"`
}

// SessionCompletedResponse is the candidate-facing completion receipt.
type SessionCompletedResponse struct {
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
}

// AssessmentRequest lets reviewers record the non-proctoring signals.
type AssessmentRequest struct {
	Confidence       float64 `json:"confidence" validate:"gte=0,lte=100"`
	ApplicationScore float64 `json:"application_score" validate:"gte=0,lte=100"`
}

// SessionSummary describes a session for reviewers.
type SessionSummary struct {
	SessionID        string     `json:"session_id"`
	CandidateID      string     `json:"candidate_id"`
	PostingID        string     `json:"posting_id"`
	Status           string     `json:"status"`
	BaseScore        float64    `json:"base_score"`
	Confidence       float64    `json:"confidence"`
	ApplicationScore float64    `json:"application_score"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SessionReportResponse is the reviewer-only integrity export.
type SessionReportResponse struct {
	Session   SessionSummary          `json:"session"`
	Report    proctor.IntegrityReport `json:"report"`
	Snapshots []SnapshotResponse      `json:"snapshots"`
}

// SnapshotResponse references one stored evidence image.
type SnapshotResponse struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// ComparisonResponse places one candidate among a posting's completed sessions.
type ComparisonResponse struct {
	PostingID   string `json:"posting_id"`
	CandidateID string `json:"candidate_id"`
	proctor.PeerComparison
}

// LeaderboardResponse is the ranked view of a posting.
type LeaderboardResponse struct {
	proctor.Leaderboard
	CacheHit bool `json:"cache_hit"`
}

// StreamMessage is written to frame-stream websocket clients.
type StreamMessage struct {
	Type   string              `json:"type"`
	Status *proctor.LiveStatus `json:"status,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// NewSessionSummary maps a stored session for reviewers.
func NewSessionSummary(session models.ProctoringSession) SessionSummary {
	return SessionSummary{
		SessionID:        session.PublicID,
		CandidateID:      session.CandidateID,
		PostingID:        session.PostingID,
		Status:           session.Status,
		BaseScore:        session.BaseScore,
		Confidence:       session.Confidence,
		ApplicationScore: session.ApplicationScore,
		StartedAt:        session.StartedAt,
		CompletedAt:      session.CompletedAt,
	}
}

// NewSnapshotResponses maps stored snapshots in capture order.
func NewSnapshotResponses(snapshots []models.SessionSnapshot) []SnapshotResponse {
	out := make([]SnapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, SnapshotResponse{URL: s.URL, CapturedAt: s.CapturedAt})
	}
	return out
}
