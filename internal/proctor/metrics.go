// Package proctor turns face-landmark frames into violation events, evidence
// counters and integrity verdicts for monitored assessment sessions.
package proctor

import (
	"math"
	"time"
)

// GazeZone classifies where the candidate is looking relative to the screen.
type GazeZone string

const (
	GazeCenter GazeZone = "center"
	GazeLeft   GazeZone = "left"
	GazeRight  GazeZone = "right"
	GazeUp     GazeZone = "up"
	GazeDown   GazeZone = "down"
)

// Combined reports whether the zone mixes a horizontal and a vertical direction, e.g. "left-up".
func (z GazeZone) Combined() bool {
	switch z {
	case GazeCenter, GazeLeft, GazeRight, GazeUp, GazeDown:
		return false
	default:
		return z != ""
	}
}

// EyeStatus is the coarse eyelid state derived from the eye aspect ratio.
type EyeStatus string

const (
	EyeUnknown   EyeStatus = "unknown"
	EyeOpen      EyeStatus = "open"
	EyeSquinting EyeStatus = "squinting"
	EyeClosed    EyeStatus = "closed"
)

// HeadPose holds ratio-based pose approximations. Yaw, pitch and roll are in
// approximate degrees; offsets are in the -100..100 range.
type HeadPose struct {
	Yaw            float64 `json:"yaw"`
	Pitch          float64 `json:"pitch"`
	Roll           float64 `json:"roll"`
	LateralOffset  float64 `json:"lateral_offset"`
	VerticalOffset float64 `json:"vertical_offset"`
}

// EmotionScores are the composite emotion scores scaled to 0..100.
type EmotionScores struct {
	Happy     int `json:"happy"`
	Surprised int `json:"surprised"`
	Sad       int `json:"sad"`
	Angry     int `json:"angry"`
	Focused   int `json:"focused"`
	Confused  int `json:"confused"`
}

// Emotion is the dominant expression for a frame.
type Emotion struct {
	Label      string        `json:"label"`
	Confidence int           `json:"confidence"`
	Scores     EmotionScores `json:"scores"`
}

// EmotionNeutral is the label used when no composite clears the threshold.
const EmotionNeutral = "neutral"

// FrameMetrics is the per-tick snapshot produced by the geometry engine.
type FrameMetrics struct {
	FaceCount      int       `json:"face_count"`
	EyeAspectRatio float64   `json:"eye_aspect_ratio"`
	EyeStatus      EyeStatus `json:"eye_status"`
	HeadPose       HeadPose  `json:"head_pose"`
	Gaze           GazeZone  `json:"gaze"`
	Emotion        Emotion   `json:"emotion"`
	MouthOpen      bool      `json:"mouth_open"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// NeutralMetrics returns the metrics used when no face can be analysed.
func NeutralMetrics(faceCount int, at time.Time) FrameMetrics {
	return FrameMetrics{
		FaceCount: faceCount,
		EyeStatus: EyeUnknown,
		Gaze:      GazeCenter,
		Emotion:   Emotion{Label: EmotionNeutral},
		Timestamp: at,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func safeRatio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	return finite(num / den)
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
