package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Detection methods reported with a verdict.
const (
	MethodOpenAI    = "openai"
	MethodAnthropic = "anthropic"
	MethodPattern   = "pattern-based-fallback"
)

// AuthorshipVerdict is the classifier's opinion on whether an answer was AI-authored.
type AuthorshipVerdict struct {
	AIGenerated bool     `json:"is_ai_generated"`
	Confidence  int      `json:"confidence"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Indicators  []string `json:"indicators,omitempty"`
	Method      string   `json:"method"`
}

// AuthorshipClassifier judges free-text answers.
type AuthorshipClassifier interface {
	Classify(ctx context.Context, answer string) (AuthorshipVerdict, error)
}

const classifierSystemPrompt = "You are an expert at detecting AI-generated text. Analyze the given text and determine if it was " +
	"written by AI or a human. Be thorough and accurate. Respond only with valid JSON."

func buildClassifierPrompt(answer string) string {
	builder := strings.Builder{}
	builder.WriteString("Analyze the following interview answer and determine if it was likely written by an AI or a human.\n\n")
	builder.WriteString("Answer to analyze:\n\"")
	builder.WriteString(answer)
	builder.WriteString("\"\n\nConsider these factors:\n")
	builder.WriteString("1. Language patterns typical of AI (overly formal, perfect grammar, structured lists)\n")
	builder.WriteString("2. Generic phrases common in AI responses\n")
	builder.WriteString("3. Lack of personal experience or specific examples\n")
	builder.WriteString("4. Overly comprehensive or textbook-like responses\n")
	builder.WriteString("5. Use of phrases like \"Certainly\", \"Furthermore\", \"In conclusion\", etc.\n\n")
	builder.WriteString("Respond with a JSON object:\n")
	builder.WriteString(`{"isAiGenerated": true/false, "confidence": 0-100, "reasoning": "brief explanation", "indicators": ["specific", "indicators"]}`)
	return builder.String()
}

// parseVerdict reads the model's JSON answer. Models occasionally wrap the
// object in prose or a code fence, so only the outermost braces are decoded.
func parseVerdict(content, method string) (AuthorshipVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return AuthorshipVerdict{}, fmt.Errorf("no json object in classifier response")
	}

	var data struct {
		IsAIGenerated bool     `json:"isAiGenerated"`
		Confidence    float64  `json:"confidence"`
		Reasoning     string   `json:"reasoning"`
		Indicators    []string `json:"indicators"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &data); err != nil {
		return AuthorshipVerdict{}, fmt.Errorf("parse classifier json: %w", err)
	}

	confidence := int(data.Confidence + 0.5)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return AuthorshipVerdict{
		AIGenerated: data.IsAIGenerated,
		Confidence:  confidence,
		Reasoning:   data.Reasoning,
		Indicators:  data.Indicators,
		Method:      method,
	}, nil
}
