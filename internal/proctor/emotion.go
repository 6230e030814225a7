package proctor

import "math"

// EmotionConfig holds the empirical constants of the composite emotion model.
type EmotionConfig struct {
	// Threshold is the minimum composite score for a non-neutral label.
	Threshold float64
	// Normalizer is the composite score that maps to full confidence.
	Normalizer float64
}

// DefaultEmotionConfig returns the 0.15 threshold and 0.8 normalizer.
func DefaultEmotionConfig() EmotionConfig {
	return EmotionConfig{Threshold: 0.15, Normalizer: 0.8}
}

// Blendshape categories consumed by the emotion model.
const (
	shapeSmileLeft      = "mouthSmileLeft"
	shapeSmileRight     = "mouthSmileRight"
	shapeCheekSquintL   = "cheekSquintLeft"
	shapeCheekSquintR   = "cheekSquintRight"
	shapeDimpleLeft     = "mouthDimpleLeft"
	shapeDimpleRight    = "mouthDimpleRight"
	shapeEyeWideLeft    = "eyeWideLeft"
	shapeEyeWideRight   = "eyeWideRight"
	shapeBrowOuterUpL   = "browOuterUpLeft"
	shapeBrowOuterUpR   = "browOuterUpRight"
	shapeBrowInnerUp    = "browInnerUp"
	shapeJawOpen        = "jawOpen"
	shapeFrownLeft      = "mouthFrownLeft"
	shapeFrownRight     = "mouthFrownRight"
	shapeLowerDownLeft  = "mouthLowerDownLeft"
	shapeLowerDownRight = "mouthLowerDownRight"
	shapePucker         = "mouthPucker"
	shapeShrugLower     = "mouthShrugLower"
	shapeBrowDownLeft   = "browDownLeft"
	shapeBrowDownRight  = "browDownRight"
	shapeEyeSquintLeft  = "eyeSquintLeft"
	shapeEyeSquintRight = "eyeSquintRight"
	shapePressLeft      = "mouthPressLeft"
	shapePressRight     = "mouthPressRight"
	shapeSneerLeft      = "noseSneerLeft"
	shapeSneerRight     = "noseSneerRight"
	shapeFunnel         = "mouthFunnel"
)

type termOp int

const (
	opSingle termOp = iota
	opSum
	opAvg
	opAbsDiff
	opComplement
)

type emotionTerm struct {
	op     termOp
	a, b   string
	weight float64
}

type emotionFormula struct {
	label string
	terms []emotionTerm
}

// emotionTable is evaluated in order; ties resolve to the earlier label.
var emotionTable = []emotionFormula{
	{label: "happy", terms: []emotionTerm{
		{opSum, shapeSmileLeft, shapeSmileRight, 0.5},
		{opSum, shapeCheekSquintL, shapeCheekSquintR, 0.3},
		{opAvg, shapeDimpleLeft, shapeDimpleRight, 0.2},
	}},
	{label: "surprised", terms: []emotionTerm{
		{opSum, shapeEyeWideLeft, shapeEyeWideRight, 0.3},
		{opSum, shapeBrowOuterUpL, shapeBrowOuterUpR, 0.25},
		{opSum, shapeBrowInnerUp, shapeBrowInnerUp, 0.15},
		{opSingle, shapeJawOpen, "", 0.3},
	}},
	{label: "sad", terms: []emotionTerm{
		{opSum, shapeFrownLeft, shapeFrownRight, 0.4},
		{opSingle, shapeBrowInnerUp, "", 0.3},
		{opSum, shapeLowerDownLeft, shapeLowerDownRight, 0.15},
		{opAvg, shapePucker, shapeShrugLower, 0.15},
	}},
	{label: "angry", terms: []emotionTerm{
		{opSum, shapeBrowDownLeft, shapeBrowDownRight, 0.35},
		{opSum, shapeEyeSquintLeft, shapeEyeSquintRight, 0.2},
		{opSum, shapePressLeft, shapePressRight, 0.2},
		{opSingle, shapeSneerLeft, "", 0.125},
		{opSingle, shapeSneerRight, "", 0.125},
	}},
	{label: "focused", terms: []emotionTerm{
		{opSum, shapeEyeSquintLeft, shapeEyeSquintRight, 0.35},
		{opSum, shapePressLeft, shapePressRight, 0.3},
		{opAvg, shapeBrowDownLeft, shapeBrowDownRight, 0.2},
		{opComplement, shapeJawOpen, "", 0.15},
	}},
	{label: "confused", terms: []emotionTerm{
		{opAbsDiff, shapeBrowDownLeft, shapeBrowDownRight, 0.4},
		{opAbsDiff, shapeBrowOuterUpL, shapeBrowOuterUpR, 0.3},
		{opSingle, shapePucker, "", 0.15},
		{opSingle, shapeFunnel, "", 0.15},
	}},
}

func (t emotionTerm) eval(shapes map[string]float64) float64 {
	a, b := shapes[t.a], shapes[t.b]
	var v float64
	switch t.op {
	case opSum:
		v = a + b
	case opAvg:
		v = (a + b) / 2
	case opAbsDiff:
		v = math.Abs(a - b)
	case opComplement:
		v = 1 - a
	default:
		v = a
	}
	return v * t.weight
}

// ScoreEmotion computes the six composite scores and picks the dominant one.
// An empty blendshape set is neutral.
func ScoreEmotion(blendshapes []Blendshape, cfg EmotionConfig) Emotion {
	if len(blendshapes) == 0 {
		return Emotion{Label: EmotionNeutral}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultEmotionConfig().Threshold
	}
	if cfg.Normalizer <= 0 {
		cfg.Normalizer = DefaultEmotionConfig().Normalizer
	}

	shapes := make(map[string]float64, len(blendshapes))
	for _, bs := range blendshapes {
		shapes[bs.Category] = finite(bs.Score)
	}

	raw := make([]float64, len(emotionTable))
	bestLabel, bestScore := EmotionNeutral, 0.0
	for i, formula := range emotionTable {
		var score float64
		for _, term := range formula.terms {
			score += term.eval(shapes)
		}
		score = finite(score)
		raw[i] = score
		if score > bestScore {
			bestLabel, bestScore = formula.label, score
		}
	}

	out := Emotion{
		Label: EmotionNeutral,
		Scores: EmotionScores{
			Happy:     percent(raw[0]),
			Surprised: percent(raw[1]),
			Sad:       percent(raw[2]),
			Angry:     percent(raw[3]),
			Focused:   percent(raw[4]),
			Confused:  percent(raw[5]),
		},
	}
	if bestScore > cfg.Threshold {
		out.Label = bestLabel
		out.Confidence = percent(math.Min(bestScore/cfg.Normalizer, 1))
	}
	return out
}

func percent(v float64) int {
	return int(math.Round(finite(v) * 100))
}
