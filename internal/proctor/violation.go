package proctor

import "time"

// ViolationType names a discrete integrity event.
type ViolationType string

const (
	ViolationNoFace         ViolationType = "face_not_detected"
	ViolationMultipleFaces  ViolationType = "multiple_faces"
	ViolationLookingAway    ViolationType = "looking_away"
	ViolationHeadShifted    ViolationType = "head_shifted"
	ViolationFrequentBlink  ViolationType = "frequent_blinking"
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationAIAnswer       ViolationType = "ai_generated_answer"
	ViolationMultipleVoices ViolationType = "multiple_voice"
)

// FaceRelated reports whether the type counts toward the persistent face flag.
func (t ViolationType) FaceRelated() bool {
	return t == ViolationNoFace || t == ViolationMultipleFaces
}

// Severity grades a violation for penalty weighting.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Weight is the penalty contribution of one log entry at this severity.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 0.5
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// ViolationEvent is an immutable entry of the session's violation log.
type ViolationEvent struct {
	Type       ViolationType  `json:"type"`
	Severity   Severity       `json:"severity"`
	DetectedAt time.Time      `json:"detected_at"`
	Details    string         `json:"details"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DefaultSeverity is the severity the detector assigns to each frame-derived type.
func DefaultSeverity(t ViolationType) Severity {
	switch t {
	case ViolationNoFace, ViolationMultipleFaces, ViolationMultipleVoices:
		return SeverityHigh
	case ViolationLookingAway, ViolationFrequentBlink:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// TabSwitchSeverity escalates with the number of switches already recorded.
func TabSwitchSeverity(prior int) Severity {
	switch {
	case prior > 3:
		return SeverityHigh
	case prior > 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AIAnswerSeverity grades a classifier verdict. The second result is false
// when the verdict is not strong enough to record.
func AIAnswerSeverity(aiGenerated bool, confidence int) (Severity, bool) {
	if !aiGenerated || confidence <= 60 {
		return "", false
	}
	if confidence > 80 {
		return SeverityHigh, true
	}
	return SeverityMedium, true
}
