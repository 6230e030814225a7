package proctor

import "math"

// Penalty weights per counter and the overall cap.
const (
	weightTabSwitch   = 0.5
	weightVoice       = 2
	weightAIAnswer    = 5
	weightNoFace      = 1.5
	weightMultiFace   = 4
	weightFlagged     = 10
	MaxPenalty        = 50
	DefaultBaseScore  = 100
	highSeverityLimit = 2
)

// Risk levels reported to reviewers.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Reviewer recommendations derived from the integrity score.
const (
	RecommendProceed = "Proceed"
	RecommendReview  = "Review"
	RecommendFlag    = "Flag for Manual Review"
)

// ScoreInputs are the non-proctoring signals folded into the verdict.
type ScoreInputs struct {
	BaseScore        float64 `json:"base_score"`
	Confidence       float64 `json:"confidence"`
	ApplicationScore float64 `json:"application_score"`
}

// Breakdown holds per-category counts for the report export.
type Breakdown struct {
	TabSwitches        int                   `json:"tab_switches"`
	NoFaceEvents       int                   `json:"no_face_events"`
	MultiFaceEvents    int                   `json:"multi_face_events"`
	AIAnswerDetections int                   `json:"ai_answer_detections"`
	VoiceAnomalies     int                   `json:"voice_anomalies"`
	TotalViolations    int                   `json:"total_violations"`
	ByType             map[ViolationType]int `json:"by_type"`
	BySeverity         map[Severity]int      `json:"by_severity"`
}

// IntegrityReport is the reviewer-facing verdict. It is a pure function of
// the counters and score inputs.
type IntegrityReport struct {
	SessionID      string           `json:"session_id"`
	Penalty        float64          `json:"penalty"`
	FinalScore     int              `json:"final_score"`
	Flagged        bool             `json:"flagged"`
	Rating         string           `json:"rating"`
	RiskLevel      string           `json:"risk_level"`
	IntegrityScore float64          `json:"integrity_score"`
	Recommendation string           `json:"recommendation"`
	Breakdown      Breakdown        `json:"breakdown"`
	Timeline       []ViolationEvent `json:"timeline"`
}

// Penalty sums the weighted counters and log severities, capped at MaxPenalty.
func Penalty(c MalpracticeCounters) float64 {
	p := weightTabSwitch*float64(c.TabSwitches) +
		weightVoice*float64(c.VoiceAnomalies) +
		weightAIAnswer*float64(c.AIAnswerDetections) +
		weightNoFace*float64(c.NoFaceEvents) +
		weightMultiFace*float64(c.MultiFaceEvents)
	for _, ev := range c.Log {
		p += ev.Severity.Weight()
	}
	if c.Flagged {
		p += weightFlagged
	}
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	return math.Min(p, MaxPenalty)
}

// FinalScore is base minus penalty, floored at zero.
func FinalScore(base, penalty float64) float64 {
	return math.Max(0, finite(base)-finite(penalty))
}

// Rating adjusts finalScore by the confidence, application and violation
// signals and maps it to a letter grade.
func Rating(finalScore float64, violations int, confidence, applicationScore float64) string {
	r := finalScore
	if confidence > 80 {
		r += 5
	}
	if applicationScore > 80 {
		r += 5
	}
	switch {
	case violations > 5:
		r -= 10
	case violations > 3:
		r -= 5
	}
	return LetterGrade(r)
}

var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{95, "A+"}, {90, "A"}, {85, "A-"}, {80, "B+"}, {75, "B"},
	{70, "B-"}, {65, "C+"}, {60, "C"}, {55, "C-"}, {50, "D"},
}

// LetterGrade maps a rating value to its letter.
func LetterGrade(r float64) string {
	for _, t := range gradeThresholds {
		if r >= t.min {
			return t.grade
		}
	}
	return "F"
}

// Flagged reports the reviewer flag: the latched session flag or more than
// two high-severity entries.
func Flagged(c MalpracticeCounters) bool {
	return c.Flagged || c.CountBySeverity(SeverityHigh) > highSeverityLimit
}

// RiskLevel grades the session as High, Medium or Low.
func RiskLevel(c MalpracticeCounters) string {
	high := c.CountBySeverity(SeverityHigh)
	switch {
	case c.Flagged || high > highSeverityLimit:
		return RiskHigh
	case len(c.Log) > 5 || high > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// IntegrityScore is 100 minus twice the penalty, floored at zero.
func IntegrityScore(penalty float64) float64 {
	return math.Max(0, 100-penalty*2)
}

// Recommendation maps an integrity score to a reviewer action.
func Recommendation(integrity float64) string {
	switch {
	case integrity >= 80:
		return RecommendProceed
	case integrity >= 60:
		return RecommendReview
	default:
		return RecommendFlag
	}
}

// BuildBreakdown counts the log by type and severity.
func BuildBreakdown(c MalpracticeCounters) Breakdown {
	b := Breakdown{
		TabSwitches:        c.TabSwitches,
		NoFaceEvents:       c.NoFaceEvents,
		MultiFaceEvents:    c.MultiFaceEvents,
		AIAnswerDetections: c.AIAnswerDetections,
		VoiceAnomalies:     c.VoiceAnomalies,
		TotalViolations:    len(c.Log),
		ByType:             make(map[ViolationType]int),
		BySeverity: map[Severity]int{
			SeverityLow:    0,
			SeverityMedium: 0,
			SeverityHigh:   0,
		},
	}
	for _, ev := range c.Log {
		b.ByType[ev.Type]++
		b.BySeverity[ev.Severity]++
	}
	return b
}

// BuildReport computes the full integrity report for a session.
func BuildReport(sessionID string, c MalpracticeCounters, in ScoreInputs) IntegrityReport {
	penalty := Penalty(c)
	final := FinalScore(in.BaseScore, penalty)
	integrity := IntegrityScore(penalty)

	timeline := make([]ViolationEvent, len(c.Log))
	copy(timeline, c.Log)

	return IntegrityReport{
		SessionID:      sessionID,
		Penalty:        penalty,
		FinalScore:     int(math.Round(final)),
		Flagged:        Flagged(c),
		Rating:         Rating(final, len(c.Log), in.Confidence, in.ApplicationScore),
		RiskLevel:      RiskLevel(c),
		IntegrityScore: integrity,
		Recommendation: Recommendation(integrity),
		Breakdown:      BuildBreakdown(c),
		Timeline:       timeline,
	}
}
