package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var aiIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(as an ai|i'm an ai|i am an artificial)`),
	regexp.MustCompile(`(?i)^(certainly|sure|of course),?\s+(here|i)`),
	regexp.MustCompile(`(?i)(in conclusion|to summarize|in summary),`),
	regexp.MustCompile(`\d+\.\s+.*\n\d+\.\s+`),
	regexp.MustCompile(`(?i)^(here's|here is) (a|an|the)`),
	regexp.MustCompile(`(?i)(it's worth noting|it is important to note)`),
	regexp.MustCompile(`(?i)(various|numerous) (factors|aspects|elements)`),
}

var formalConnectives = []string{"furthermore", "moreover", "consequently", "nevertheless", "accordingly"}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// PatternClassifier scores answers with surface heuristics. It needs no
// network access and never fails.
type PatternClassifier struct{}

// NewPatternClassifier returns the heuristic classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// Classify scores answer: two or more indicator phrases add 40 (one adds 20),
// an average sentence length between 100 and 150 characters adds 20, two or
// more formal connectives add 20, and at least three sentences over 200
// characters add 20. Scores of 50 and above read as AI-authored.
func (PatternClassifier) Classify(_ context.Context, answer string) (AuthorshipVerdict, error) {
	matches := 0
	for _, pattern := range aiIndicators {
		if pattern.MatchString(answer) {
			matches++
		}
	}

	sentences := 0
	for _, part := range sentenceBreak.Split(answer, -1) {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}
	length := utf8.RuneCountInString(answer)
	avgSentence := float64(length) / float64(max(sentences, 1))

	lower := strings.ToLower(answer)
	formal := 0
	for _, word := range formalConnectives {
		if strings.Contains(lower, word) {
			formal++
		}
	}

	confidence := 0
	switch {
	case matches >= 2:
		confidence += 40
	case matches == 1:
		confidence += 20
	}
	if avgSentence > 100 && avgSentence < 150 {
		confidence += 20
	}
	if formal >= 2 {
		confidence += 20
	}
	if sentences >= 3 && length > 200 {
		confidence += 20
	}

	return AuthorshipVerdict{
		AIGenerated: confidence >= 50,
		Confidence:  confidence,
		Indicators: []string{
			fmt.Sprintf("pattern_matches=%d", matches),
			fmt.Sprintf("formal_language=%d", formal),
			fmt.Sprintf("average_sentence_length=%d", int(avgSentence+0.5)),
		},
		Method: MethodPattern,
	}, nil
}
