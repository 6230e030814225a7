package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	classifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proctor",
		Subsystem: "ai",
		Name:      "classification_duration_seconds",
		Help:      "Duration of answer authorship classification requests",
	}, []string{"provider", "model"})

	classifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proctor",
		Subsystem: "ai",
		Name:      "classification_failures_total",
		Help:      "Number of answer authorship classification failures",
	}, []string{"provider", "model"})
)

// OpenAIConfig defines configuration options for the OpenAI classifier.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClassifier implements AuthorshipClassifier against the OpenAI chat completion API.
type OpenAIClassifier struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClassifier builds a new classifier using the provided configuration.
func NewOpenAIClassifier(cfg OpenAIConfig) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-proctor-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_classifier").Logger(),
	}, nil
}

// Classify sends the answer to OpenAI and parses the JSON verdict.
func (c *OpenAIClassifier) Classify(parent context.Context, answer string) (AuthorshipVerdict, error) {
	ctx, span := c.tracer.Start(parent, "openai.classify", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("answer_length", len(answer)),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifierSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildClassifierPrompt(answer),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	classifyDuration.WithLabelValues(MethodOpenAI, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return AuthorshipVerdict{}, c.fail(span, fmt.Errorf("openai classify: %w", err))
	}

	if len(resp.Choices) == 0 {
		return AuthorshipVerdict{}, c.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	verdict, err := parseVerdict(strings.TrimSpace(resp.Choices[0].Message.Content), MethodOpenAI)
	if err != nil {
		return AuthorshipVerdict{}, c.fail(span, err)
	}

	span.SetAttributes(attribute.Bool("ai_generated", verdict.AIGenerated), attribute.Int("confidence", verdict.Confidence))
	c.logger.Debug().Bool("ai_generated", verdict.AIGenerated).Int("confidence", verdict.Confidence).Msg("answer classified")
	return verdict, nil
}

func (c *OpenAIClassifier) fail(span trace.Span, err error) error {
	classifyFailures.WithLabelValues(MethodOpenAI, c.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
