package proctor

import "time"

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// frontalMesh is a centred, level face with open eyes looking at the screen.
func frontalMesh() []Point {
	lm := make([]Point, 478)
	for i := range lm {
		lm[i] = Point{X: 0.5, Y: 0.5}
	}

	lm[LandmarkNoseTip] = Point{X: 0.5, Y: 0.5}
	lm[LandmarkForehead] = Point{X: 0.5, Y: 0.3}
	lm[LandmarkChin] = Point{X: 0.5, Y: 0.7}
	lm[LandmarkLeftTemple] = Point{X: 0.35, Y: 0.5}
	lm[LandmarkRightTemple] = Point{X: 0.65, Y: 0.5}

	lm[LandmarkLeftOuter] = Point{X: 0.40, Y: 0.45}
	lm[LandmarkLeftInner] = Point{X: 0.46, Y: 0.45}
	lm[LandmarkRightInner] = Point{X: 0.54, Y: 0.45}
	lm[LandmarkRightOuter] = Point{X: 0.60, Y: 0.45}

	for i := range leftUpperLid {
		lm[leftUpperLid[i]] = Point{X: 0.43, Y: 0.441}
		lm[leftLowerLid[i]] = Point{X: 0.43, Y: 0.459}
		lm[rightUpperLid[i]] = Point{X: 0.57, Y: 0.441}
		lm[rightLowerLid[i]] = Point{X: 0.57, Y: 0.459}
	}

	lm[LandmarkLeftIris] = Point{X: 0.43, Y: 0.45}
	lm[LandmarkRightIris] = Point{X: 0.57, Y: 0.45}

	lm[LandmarkUpperLip] = Point{X: 0.5, Y: 0.60}
	lm[LandmarkLowerLip] = Point{X: 0.5, Y: 0.61}
	return lm
}

func closeEyes(lm []Point) []Point {
	for i := range leftLowerLid {
		lm[leftLowerLid[i]].Y = 0.443
		lm[rightLowerLid[i]].Y = 0.443
	}
	return lm
}

func shiftX(lm []Point, dx float64) []Point {
	for i := range lm {
		lm[i].X += dx
	}
	return lm
}

func faceFrame(lm []Point) LandmarkFrame {
	return LandmarkFrame{
		Landmarks:  lm,
		Detections: []DetectionBox{{X: 0.3, Y: 0.25, Width: 0.4, Height: 0.5, Confidence: 0.97}},
		CapturedAt: testEpoch,
	}
}

// frontalMetrics are the detector inputs of a compliant tick.
func frontalMetrics(at time.Time) FrameMetrics {
	return FrameMetrics{
		FaceCount:      1,
		EyeAspectRatio: 0.3,
		EyeStatus:      EyeOpen,
		Gaze:           GazeCenter,
		Emotion:        Emotion{Label: EmotionNeutral},
		Confidence:     0.97,
		Timestamp:      at,
	}
}

func awayMetrics(at time.Time) FrameMetrics {
	m := frontalMetrics(at)
	m.HeadPose.Yaw = 32
	return m
}
