package proctor

import "time"

// Face mesh indices consumed by the geometry engine. The layout follows the
// 478-point face landmarker topology (468 mesh points plus 10 iris points).
const (
	LandmarkNoseTip      = 1
	LandmarkForehead     = 10
	LandmarkUpperLip     = 13
	LandmarkLowerLip     = 14
	LandmarkChin         = 152
	LandmarkLeftTemple   = 234
	LandmarkRightTemple  = 454
	LandmarkLeftIris     = 468
	LandmarkRightIris    = 473
	LandmarkLeftOuter    = 33
	LandmarkLeftInner    = 133
	LandmarkRightInner   = 362
	LandmarkRightOuter   = 263
	LandmarkLeftLidTop   = 159
	LandmarkLeftLidBot   = 145
	LandmarkRightLidTop  = 386
	LandmarkRightLidBot  = 374
	MinimumLandmarkCount = 474
)

var (
	leftUpperLid  = [3]int{159, 160, 161}
	leftLowerLid  = [3]int{144, 145, 153}
	rightUpperLid = [3]int{386, 385, 384}
	rightLowerLid = [3]int{373, 374, 380}
)

// Point is a landmark in normalised image coordinates (0..1 on both axes).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// DetectionBox is a per-face bounding box reported by the face detector.
type DetectionBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Blendshape is a named expression intensity score in the 0..1 range.
type Blendshape struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// LandmarkFrame is one analysed frame as produced by the landmark provider.
// Landmarks describe the primary face only.
type LandmarkFrame struct {
	Landmarks   []Point        `json:"landmarks"`
	Detections  []DetectionBox `json:"detections"`
	Blendshapes []Blendshape   `json:"blendshapes,omitempty"`
	CapturedAt  time.Time      `json:"captured_at"`
}

// HasMesh reports whether the frame carries enough points for geometry.
func (f LandmarkFrame) HasMesh() bool {
	return len(f.Landmarks) >= MinimumLandmarkCount
}

// FaceCount returns the number of faces in the frame. Providers that only
// emit a mesh without detector boxes count as a single face.
func (f LandmarkFrame) FaceCount() int {
	if len(f.Detections) > 0 {
		return len(f.Detections)
	}
	if f.HasMesh() {
		return 1
	}
	return 0
}

// DetectionConfidence returns the confidence of the primary detection box.
func (f LandmarkFrame) DetectionConfidence() float64 {
	if len(f.Detections) == 0 {
		if f.HasMesh() {
			return 0.9
		}
		return 0
	}
	return finite(f.Detections[0].Confidence)
}
