package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternClassifierHumanAnswer(t *testing.T) {
	verdict, err := NewPatternClassifier().Classify(context.Background(), "I fixed the cache bug last week by adding a lock.")
	require.NoError(t, err)
	require.False(t, verdict.AIGenerated)
	require.Equal(t, 0, verdict.Confidence)
	require.Equal(t, MethodPattern, verdict.Method)
}

func TestPatternClassifierScoresIndicators(t *testing.T) {
	answer := "Certainly, here is my view. It is important to note that various factors matter. " +
		"Furthermore, teams should plan. Moreover, in summary, testing helps everyone ship with far more confidence than before. Reviews help too."

	verdict, err := NewPatternClassifier().Classify(context.Background(), answer)
	require.NoError(t, err)

	// 4 indicator phrases (+40), 2+ formal connectives (+20), 5 sentences over 200 runes (+20).
	require.Equal(t, 80, verdict.Confidence)
	require.True(t, verdict.AIGenerated)
	require.Contains(t, verdict.Indicators, "pattern_matches=4")
	require.Contains(t, verdict.Indicators, "formal_language=2")
}

func TestPatternClassifierSingleIndicatorStaysHuman(t *testing.T) {
	verdict, err := NewPatternClassifier().Classify(context.Background(), "Here is the plan: ship it.")
	require.NoError(t, err)
	require.Equal(t, 20, verdict.Confidence)
	require.False(t, verdict.AIGenerated)
}

func TestPatternClassifierLongSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 24) + "end."
	verdict, err := NewPatternClassifier().Classify(context.Background(), sentence)
	require.NoError(t, err)
	// one sentence of 124 runes sits inside the 100..150 band.
	require.Equal(t, 20, verdict.Confidence)
}

func TestPatternClassifierNumberedList(t *testing.T) {
	verdict, err := NewPatternClassifier().Classify(context.Background(), "Steps:\n1. plan it\n2. build it")
	require.NoError(t, err)
	require.Contains(t, verdict.Indicators, "pattern_matches=1")
}
