package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnthropicConfig defines configuration options for the Anthropic classifier.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
	Logger      zerolog.Logger
}

// AnthropicClassifier implements AuthorshipClassifier with the Messages API.
type AnthropicClassifier struct {
	client sdk.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicClassifier constructs a classifier backed by the official SDK.
func NewAnthropicClassifier(cfg AnthropicConfig) (*AnthropicClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClassifier{
		client: sdk.NewClient(opts...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-proctor-api/pkg/ai/anthropic"),
		logger: cfg.Logger.With().Str("component", "anthropic_classifier").Logger(),
	}, nil
}

// Classify asks the model for a JSON verdict on answer.
func (c *AnthropicClassifier) Classify(parent context.Context, answer string) (AuthorshipVerdict, error) {
	ctx, span := c.tracer.Start(parent, "anthropic.classify", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("answer_length", len(answer)),
	))
	defer span.End()

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		System:      []sdk.TextBlockParam{{Text: classifierSystemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(buildClassifierPrompt(answer)))},
		Temperature: sdk.Float(c.cfg.Temperature),
	})
	classifyDuration.WithLabelValues(MethodAnthropic, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return AuthorshipVerdict{}, c.fail(span, fmt.Errorf("anthropic classify: %w", err))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	verdict, err := parseVerdict(text.String(), MethodAnthropic)
	if err != nil {
		return AuthorshipVerdict{}, c.fail(span, err)
	}

	span.SetAttributes(attribute.Bool("ai_generated", verdict.AIGenerated), attribute.Int("confidence", verdict.Confidence))
	c.logger.Debug().Bool("ai_generated", verdict.AIGenerated).Int("confidence", verdict.Confidence).Msg("answer classified")
	return verdict, nil
}

func (c *AnthropicClassifier) fail(span trace.Span, err error) error {
	classifyFailures.WithLabelValues(MethodAnthropic, c.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
