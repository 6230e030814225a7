package proctor

import (
	"fmt"
	"math"
	"time"
)

// DetectorConfig holds the debounce and threshold settings of the violation
// state machine.
type DetectorConfig struct {
	BlinkThreshold float64
	MaxBlinkRate   float64
	YawLimit       float64
	PitchLimit     float64
	AwayDebounce   int
	LateralLimit   float64
}

// DefaultDetectorConfig returns the production thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BlinkThreshold: 0.18,
		MaxBlinkRate:   25,
		YawLimit:       25,
		PitchLimit:     20,
		AwayDebounce:   8,
		LateralLimit:   40,
	}
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	def := DefaultDetectorConfig()
	if c.BlinkThreshold <= 0 {
		c.BlinkThreshold = def.BlinkThreshold
	}
	if c.MaxBlinkRate <= 0 {
		c.MaxBlinkRate = def.MaxBlinkRate
	}
	if c.YawLimit <= 0 {
		c.YawLimit = def.YawLimit
	}
	if c.PitchLimit <= 0 {
		c.PitchLimit = def.PitchLimit
	}
	if c.AwayDebounce <= 0 {
		c.AwayDebounce = def.AwayDebounce
	}
	if c.LateralLimit <= 0 {
		c.LateralLimit = def.LateralLimit
	}
	return c
}

// SessionState is the mutable state of one monitored session. It has exactly
// one owner at a time and is never shared between goroutines.
type SessionState struct {
	SessionID   string
	StartedAt   time.Time
	BlinkCount  int
	PrevEAR     float64
	AwayCounter int
	BlinkRate   float64
	Ticks       int
	Counters    MalpracticeCounters
	LastMetrics FrameMetrics
}

// NewSessionState creates an empty state for a session starting at startedAt.
func NewSessionState(sessionID string, startedAt time.Time) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		StartedAt:   startedAt,
		LastMetrics: NeutralMetrics(0, startedAt),
	}
}

// Detector debounces frame metrics into violation events.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector builds a detector, filling unset thresholds with defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (d *Detector) Config() DetectorConfig {
	return d.cfg
}

// Observe advances state by one tick and returns the events raised by it.
// Each violation type appears at most once in the result.
func (d *Detector) Observe(state *SessionState, m FrameMetrics) []ViolationEvent {
	state.Ticks++
	state.LastMetrics = m

	at := m.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if m.FaceCount <= 0 {
		return []ViolationEvent{d.event(ViolationNoFace, at, "No face detected in frame", nil)}
	}

	var events []ViolationEvent
	multiFace := m.FaceCount > 1
	if multiFace {
		events = append(events, d.event(ViolationMultipleFaces, at,
			fmt.Sprintf("Multiple faces detected (%d)", m.FaceCount),
			map[string]any{"face_count": m.FaceCount}))
	}

	// detections without a mesh carry no eye or pose geometry
	if m.EyeStatus == EyeUnknown {
		return events
	}

	ear := finite(m.EyeAspectRatio)
	if ear < d.cfg.BlinkThreshold && state.PrevEAR >= d.cfg.BlinkThreshold {
		state.BlinkCount++
	}
	state.PrevEAR = ear

	elapsed := at.Sub(state.StartedAt).Seconds()
	state.BlinkRate = float64(state.BlinkCount) / math.Max(elapsed, 1) * 60

	pose := m.HeadPose
	away := math.Abs(pose.Yaw) > d.cfg.YawLimit || math.Abs(pose.Pitch) > d.cfg.PitchLimit
	if away {
		state.AwayCounter++
	} else if state.AwayCounter > 0 {
		state.AwayCounter--
	}

	if multiFace {
		return events
	}

	if away && state.AwayCounter >= d.cfg.AwayDebounce {
		events = append(events, d.event(ViolationLookingAway, at,
			fmt.Sprintf("Looking away from screen (yaw %.1f, pitch %.1f)", pose.Yaw, pose.Pitch),
			map[string]any{"yaw": round2(pose.Yaw), "pitch": round2(pose.Pitch), "away_ticks": state.AwayCounter}))
	}

	if math.Abs(pose.LateralOffset) > d.cfg.LateralLimit {
		direction := "left"
		if pose.LateralOffset > 0 {
			direction = "right"
		}
		events = append(events, d.event(ViolationHeadShifted, at,
			"Head shifted "+direction,
			map[string]any{"direction": direction, "offset": round2(pose.LateralOffset)}))
	}

	if state.BlinkRate > d.cfg.MaxBlinkRate {
		events = append(events, d.event(ViolationFrequentBlink, at,
			fmt.Sprintf("Frequent blinking (%.1f/min)", state.BlinkRate),
			map[string]any{"blink_rate": round2(state.BlinkRate), "blink_count": state.BlinkCount}))
	}

	return events
}

func (d *Detector) event(t ViolationType, at time.Time, details string, meta map[string]any) ViolationEvent {
	return ViolationEvent{
		Type:       t,
		Severity:   DefaultSeverity(t),
		DetectedAt: at,
		Details:    details,
		Metadata:   meta,
	}
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() SessionState {
	out := *s
	out.Counters = s.Counters.Clone()
	return out
}
