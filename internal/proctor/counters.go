package proctor

import (
	"errors"
	"fmt"
	"time"
)

// ErrCounterRegression is returned for any attempt to lower a malpractice counter.
var ErrCounterRegression = errors.New("malpractice counter cannot decrease")

// Counter identifies one malpractice counter.
type Counter string

const (
	CounterTabSwitches    Counter = "tab_switches"
	CounterNoFace         Counter = "no_face_events"
	CounterMultiFace      Counter = "multi_face_events"
	CounterAIAnswers      Counter = "ai_answer_detections"
	CounterVoiceAnomalies Counter = "voice_anomalies"
)

// MalpracticeCounters accumulate evidence for the lifetime of a session.
// Counters only grow, Log only appends and Flagged only latches on.
type MalpracticeCounters struct {
	TabSwitches        int              `json:"tab_switches"`
	NoFaceEvents       int              `json:"no_face_events"`
	MultiFaceEvents    int              `json:"multi_face_events"`
	AIAnswerDetections int              `json:"ai_answer_detections"`
	VoiceAnomalies     int              `json:"voice_anomalies"`
	Log                []ViolationEvent `json:"violation_log"`
	Flagged            bool             `json:"flagged"`
}

func (c *MalpracticeCounters) field(k Counter) (*int, error) {
	switch k {
	case CounterTabSwitches:
		return &c.TabSwitches, nil
	case CounterNoFace:
		return &c.NoFaceEvents, nil
	case CounterMultiFace:
		return &c.MultiFaceEvents, nil
	case CounterAIAnswers:
		return &c.AIAnswerDetections, nil
	case CounterVoiceAnomalies:
		return &c.VoiceAnomalies, nil
	default:
		return nil, fmt.Errorf("unknown counter %q", k)
	}
}

// Value returns the current value of counter k.
func (c MalpracticeCounters) Value(k Counter) int {
	p, err := c.field(k)
	if err != nil {
		return 0
	}
	return *p
}

// Increment adds delta to counter k. Negative deltas are rejected.
func (c *MalpracticeCounters) Increment(k Counter, delta int) error {
	if delta < 0 {
		return fmt.Errorf("%w: %s by %d", ErrCounterRegression, k, delta)
	}
	p, err := c.field(k)
	if err != nil {
		return err
	}
	*p += delta
	return nil
}

// MarkFlagged latches the session flag.
func (c *MalpracticeCounters) MarkFlagged() {
	c.Flagged = true
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c MalpracticeCounters) Clone() MalpracticeCounters {
	out := c
	out.Log = make([]ViolationEvent, len(c.Log))
	for i, ev := range c.Log {
		if ev.Metadata != nil {
			meta := make(map[string]any, len(ev.Metadata))
			for k, v := range ev.Metadata {
				meta[k] = v
			}
			ev.Metadata = meta
		}
		out.Log[i] = ev
	}
	return out
}

// Total is the number of violation log entries.
func (c MalpracticeCounters) Total() int {
	return len(c.Log)
}

// CountBySeverity returns the number of log entries with severity s.
func (c MalpracticeCounters) CountBySeverity(s Severity) int {
	n := 0
	for _, ev := range c.Log {
		if ev.Severity == s {
			n++
		}
	}
	return n
}

// CheckMonotonic verifies that next does not retract any evidence held by prev.
func CheckMonotonic(prev, next MalpracticeCounters) error {
	for _, k := range []Counter{CounterTabSwitches, CounterNoFace, CounterMultiFace, CounterAIAnswers, CounterVoiceAnomalies} {
		if next.Value(k) < prev.Value(k) {
			return fmt.Errorf("%w: %s %d -> %d", ErrCounterRegression, k, prev.Value(k), next.Value(k))
		}
	}
	if len(next.Log) < len(prev.Log) {
		return fmt.Errorf("%w: violation log %d -> %d", ErrCounterRegression, len(prev.Log), len(next.Log))
	}
	if prev.Flagged && !next.Flagged {
		return fmt.Errorf("%w: flag cleared", ErrCounterRegression)
	}
	return nil
}

// AggregatorConfig controls the persistent face-violation flag.
type AggregatorConfig struct {
	FaceFlagWindow    int
	FaceFlagThreshold int
}

// DefaultAggregatorConfig flags a session once the 10 most recent face
// violations hold at least 5 entries.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{FaceFlagWindow: 10, FaceFlagThreshold: 5}
}

// Aggregator folds violation events and out-of-band reports into counters.
type Aggregator struct {
	cfg AggregatorConfig
}

// NewAggregator builds an aggregator, filling unset values with defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.FaceFlagWindow <= 0 {
		cfg.FaceFlagWindow = def.FaceFlagWindow
	}
	if cfg.FaceFlagThreshold <= 0 {
		cfg.FaceFlagThreshold = def.FaceFlagThreshold
	}
	return &Aggregator{cfg: cfg}
}

// RecordViolation appends ev to the log and bumps the matching counter. The
// returned event carries the timestamp actually recorded.
func (a *Aggregator) RecordViolation(c *MalpracticeCounters, ev ViolationEvent) ViolationEvent {
	if !ev.Severity.Valid() {
		ev.Severity = DefaultSeverity(ev.Type)
	}
	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = time.Now().UTC()
	}
	if n := len(c.Log); n > 0 && ev.DetectedAt.Before(c.Log[n-1].DetectedAt) {
		ev.DetectedAt = c.Log[n-1].DetectedAt
	}

	switch ev.Type {
	case ViolationNoFace:
		c.NoFaceEvents++
	case ViolationMultipleFaces:
		c.MultiFaceEvents++
	case ViolationTabSwitch:
		c.TabSwitches++
	case ViolationAIAnswer:
		c.AIAnswerDetections++
	case ViolationMultipleVoices:
		c.VoiceAnomalies++
	}

	c.Log = append(c.Log, ev)
	if ev.Type.FaceRelated() && a.faceFlagReached(c) {
		c.MarkFlagged()
	}
	return ev
}

// RecordTabSwitch records a focus loss. Severity escalates with prior switches.
func (a *Aggregator) RecordTabSwitch(c *MalpracticeCounters, at time.Time) ViolationEvent {
	severity := TabSwitchSeverity(c.TabSwitches)
	return a.RecordViolation(c, ViolationEvent{
		Type:       ViolationTabSwitch,
		Severity:   severity,
		DetectedAt: at,
		Details:    fmt.Sprintf("Tab/window switch detected. Total switches: %d", c.TabSwitches+1),
	})
}

// RecordAIAnswer records a classifier verdict when it is strong enough. The
// bool result reports whether anything was recorded.
func (a *Aggregator) RecordAIAnswer(c *MalpracticeCounters, aiGenerated bool, confidence int, reasoning string, at time.Time) (ViolationEvent, bool) {
	severity, ok := AIAnswerSeverity(aiGenerated, confidence)
	if !ok {
		return ViolationEvent{}, false
	}
	details := fmt.Sprintf("Answer likely AI-generated (confidence %d%%)", confidence)
	if reasoning != "" {
		details += ": " + reasoning
	}
	return a.RecordViolation(c, ViolationEvent{
		Type:       ViolationAIAnswer,
		Severity:   severity,
		DetectedAt: at,
		Details:    details,
		Metadata:   map[string]any{"confidence": confidence},
	}), true
}

// RecordVoiceAnomaly records a multi-speaker report from the audio analyser.
func (a *Aggregator) RecordVoiceAnomaly(c *MalpracticeCounters, speakers int, confidence float64, at time.Time) ViolationEvent {
	return a.RecordViolation(c, ViolationEvent{
		Type:       ViolationMultipleVoices,
		Severity:   SeverityHigh,
		DetectedAt: at,
		Details:    fmt.Sprintf("Multiple voices detected (%d speakers, confidence %.0f%%)", speakers, finite(confidence)*100),
		Metadata:   map[string]any{"speakers": speakers, "confidence": round2(finite(confidence))},
	})
}

// ApplyCompletionFlag latches the flag if more than two high-severity entries
// were logged.
func (a *Aggregator) ApplyCompletionFlag(c *MalpracticeCounters) {
	if c.CountBySeverity(SeverityHigh) > 2 {
		c.MarkFlagged()
	}
}

func (a *Aggregator) faceFlagReached(c *MalpracticeCounters) bool {
	recent := 0
	for i := len(c.Log) - 1; i >= 0 && recent < a.cfg.FaceFlagWindow; i-- {
		if c.Log[i].Type.FaceRelated() {
			recent++
		}
	}
	return recent >= a.cfg.FaceFlagThreshold
}
