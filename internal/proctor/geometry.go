package proctor

import (
	"math"
	"time"
)

// GazeBand is the screen-focus zone for normalised iris positions.
type GazeBand struct {
	HorizontalMin float64
	HorizontalMax float64
	VerticalMin   float64
	VerticalMax   float64
}

// GeometryConfig tunes the per-frame metric extraction.
type GeometryConfig struct {
	Gaze               GazeBand
	Emotion            EmotionConfig
	MouthOpenThreshold float64
	EyeClosedBelow     float64
	EyeSquintBelow     float64
}

// DefaultGeometryConfig mirrors the thresholds the detection loop shipped with.
func DefaultGeometryConfig() GeometryConfig {
	return GeometryConfig{
		Gaze: GazeBand{
			HorizontalMin: 0.40,
			HorizontalMax: 0.60,
			VerticalMin:   0.30,
			VerticalMax:   0.70,
		},
		Emotion:            DefaultEmotionConfig(),
		MouthOpenThreshold: 0.02,
		EyeClosedBelow:     0.15,
		EyeSquintBelow:     0.22,
	}
}

func (c GeometryConfig) withDefaults() GeometryConfig {
	def := DefaultGeometryConfig()
	if c.Gaze.HorizontalMax <= c.Gaze.HorizontalMin {
		c.Gaze.HorizontalMin, c.Gaze.HorizontalMax = def.Gaze.HorizontalMin, def.Gaze.HorizontalMax
	}
	if c.Gaze.VerticalMax <= c.Gaze.VerticalMin {
		c.Gaze.VerticalMin, c.Gaze.VerticalMax = def.Gaze.VerticalMin, def.Gaze.VerticalMax
	}
	if c.Emotion.Threshold <= 0 {
		c.Emotion.Threshold = def.Emotion.Threshold
	}
	if c.Emotion.Normalizer <= 0 {
		c.Emotion.Normalizer = def.Emotion.Normalizer
	}
	if c.MouthOpenThreshold <= 0 {
		c.MouthOpenThreshold = def.MouthOpenThreshold
	}
	if c.EyeClosedBelow <= 0 {
		c.EyeClosedBelow = def.EyeClosedBelow
	}
	if c.EyeSquintBelow <= c.EyeClosedBelow {
		c.EyeSquintBelow = def.EyeSquintBelow
	}
	return c
}

// Engine converts landmark frames into FrameMetrics. It holds no per-session
// state and is safe to share between monitors.
type Engine struct {
	cfg GeometryConfig
}

// NewEngine builds an engine, filling unset thresholds with defaults.
func NewEngine(cfg GeometryConfig) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Analyze computes the metrics for one frame. Frames without a face, or with
// a face but no usable mesh, short-circuit to neutral metrics.
func (e *Engine) Analyze(frame LandmarkFrame, at time.Time) FrameMetrics {
	faceCount := frame.FaceCount()
	if faceCount == 0 || !frame.HasMesh() {
		if faceCount > 1 {
			return NeutralMetrics(faceCount, at)
		}
		return NeutralMetrics(0, at)
	}

	lm := frame.Landmarks
	ear := EyeAspectRatio(lm)
	pose := EstimateHeadPose(lm)

	return FrameMetrics{
		FaceCount:      faceCount,
		EyeAspectRatio: ear,
		EyeStatus:      e.eyeStatus(ear),
		HeadPose:       pose,
		Gaze:           ClassifyGaze(lm, e.cfg.Gaze),
		Emotion:        ScoreEmotion(frame.Blendshapes, e.cfg.Emotion),
		MouthOpen:      MouthOpen(lm, e.cfg.MouthOpenThreshold),
		Confidence:     frame.DetectionConfidence(),
		Timestamp:      at,
	}
}

func (e *Engine) eyeStatus(ear float64) EyeStatus {
	switch {
	case ear < e.cfg.EyeClosedBelow:
		return EyeClosed
	case ear < e.cfg.EyeSquintBelow:
		return EyeSquinting
	default:
		return EyeOpen
	}
}

// EyeAspectRatio returns the mean EAR of both eyes. Each eye averages three
// lid-to-lid distances and divides by the corner-to-corner span.
func EyeAspectRatio(lm []Point) float64 {
	if len(lm) < MinimumLandmarkCount {
		return 0
	}
	left := eyeRatio(lm, leftUpperLid, leftLowerLid, LandmarkLeftOuter, LandmarkLeftInner)
	right := eyeRatio(lm, rightUpperLid, rightLowerLid, LandmarkRightInner, LandmarkRightOuter)
	return finite((left + right) / 2)
}

func eyeRatio(lm []Point, upper, lower [3]int, cornerA, cornerB int) float64 {
	var vertical float64
	for i := range upper {
		vertical += dist(lm[upper[i]], lm[lower[i]])
	}
	horizontal := dist(lm[cornerA], lm[cornerB])
	return safeRatio(vertical, float64(len(upper))*horizontal)
}

// EstimateHeadPose approximates yaw, pitch, roll and the face offset from the
// frame centre using landmark distance ratios.
func EstimateHeadPose(lm []Point) HeadPose {
	if len(lm) < MinimumLandmarkCount {
		return HeadPose{}
	}

	nose := lm[LandmarkNoseTip]
	chin := lm[LandmarkChin]
	forehead := lm[LandmarkForehead]
	leftTemple := lm[LandmarkLeftTemple]
	rightTemple := lm[LandmarkRightTemple]

	faceWidth := dist(leftTemple, rightTemple)
	yaw := safeRatio(dist(nose, leftTemple)-dist(nose, rightTemple), faceWidth) * 90

	toForehead := dist(nose, forehead)
	toChin := dist(nose, chin)
	pitch := safeRatio(toChin-toForehead, toForehead+toChin) * 90

	centerX := (leftTemple.X + rightTemple.X) / 2
	centerY := (forehead.Y + chin.Y) / 2

	return HeadPose{
		Yaw:            finite(yaw),
		Pitch:          finite(pitch),
		Roll:           HeadRoll(lm),
		LateralOffset:  finite((centerX - 0.5) * 200),
		VerticalOffset: finite((centerY - 0.5) * 200),
	}
}

// HeadRoll is the angle in degrees of the line joining the outer eye corners.
func HeadRoll(lm []Point) float64 {
	if len(lm) < MinimumLandmarkCount {
		return 0
	}
	a := lm[LandmarkLeftOuter]
	b := lm[LandmarkRightOuter]
	return round2(finite(math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi))
}

// ClassifyGaze normalises each iris within its eye span, averages both eyes and
// maps the result onto the screen-focus band. Horizontal direction takes
// priority; a vertical deviation is appended when both are off-centre.
func ClassifyGaze(lm []Point, band GazeBand) GazeZone {
	if len(lm) < MinimumLandmarkCount {
		return GazeCenter
	}

	leftX := irisRatio(lm[LandmarkLeftIris].X, lm[LandmarkLeftOuter].X, lm[LandmarkLeftInner].X)
	rightX := irisRatio(lm[LandmarkRightIris].X, lm[LandmarkRightOuter].X, lm[LandmarkRightInner].X)
	gazeX := (leftX + rightX) / 2

	leftY := irisRatio(lm[LandmarkLeftIris].Y, lm[LandmarkLeftLidTop].Y, lm[LandmarkLeftLidBot].Y)
	rightY := irisRatio(lm[LandmarkRightIris].Y, lm[LandmarkRightLidTop].Y, lm[LandmarkRightLidBot].Y)
	gazeY := (leftY + rightY) / 2

	horizontal := GazeCenter
	switch {
	case gazeX < band.HorizontalMin:
		horizontal = GazeLeft
	case gazeX > band.HorizontalMax:
		horizontal = GazeRight
	}

	vertical := GazeCenter
	switch {
	case gazeY < band.VerticalMin:
		vertical = GazeUp
	case gazeY > band.VerticalMax:
		vertical = GazeDown
	}

	switch {
	case horizontal == GazeCenter:
		return vertical
	case vertical == GazeCenter:
		return horizontal
	default:
		return horizontal + "-" + vertical
	}
}

// irisRatio places v within [from, to]; a degenerate span reads as centred.
func irisRatio(v, from, to float64) float64 {
	span := to - from
	if span == 0 || math.IsNaN(span) {
		return 0.5
	}
	r := (v - from) / span
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0.5
	}
	return r
}

// MouthOpen reports whether the inner lip gap exceeds threshold.
func MouthOpen(lm []Point, threshold float64) bool {
	if len(lm) < MinimumLandmarkCount {
		return false
	}
	return dist(lm[LandmarkUpperLip], lm[LandmarkLowerLip]) > threshold
}
