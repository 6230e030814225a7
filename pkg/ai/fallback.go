package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FallbackClassifier consults a remote model and falls back to the pattern
// heuristics when the call fails or times out.
type FallbackClassifier struct {
	primary  AuthorshipClassifier
	fallback AuthorshipClassifier
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewFallbackClassifier wraps primary. A nil primary classifies with the
// fallback only.
func NewFallbackClassifier(primary AuthorshipClassifier, timeout time.Duration, logger zerolog.Logger) *FallbackClassifier {
	return &FallbackClassifier{
		primary:  primary,
		fallback: NewPatternClassifier(),
		timeout:  timeout,
		logger:   logger.With().Str("component", "authorship_classifier").Logger(),
	}
}

// Classify never returns an error unless ctx is already done.
func (c *FallbackClassifier) Classify(ctx context.Context, answer string) (AuthorshipVerdict, error) {
	if err := ctx.Err(); err != nil {
		return AuthorshipVerdict{}, err
	}
	if c.primary == nil {
		return c.fallback.Classify(ctx, answer)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	verdict, err := c.primary.Classify(callCtx, answer)
	if err == nil {
		return verdict, nil
	}

	c.logger.Warn().Err(err).Msg("remote classification failed, using pattern-based detection")
	return c.fallback.Classify(ctx, answer)
}

// Options selects and configures the remote classifier.
type Options struct {
	Provider  string
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// NewClassifier builds the configured classifier chain. A provider without
// an API key degrades to the pattern heuristics.
func NewClassifier(opts Options) AuthorshipClassifier {
	var (
		primary AuthorshipClassifier
		err     error
	)

	switch opts.Provider {
	case "anthropic":
		opts.Anthropic.Logger = opts.Logger
		primary, err = NewAnthropicClassifier(opts.Anthropic)
	case "openai", "":
		opts.OpenAI.Logger = opts.Logger
		primary, err = NewOpenAIClassifier(opts.OpenAI)
	}

	if err != nil || primary == nil {
		opts.Logger.Warn().Str("provider", opts.Provider).Msg("no remote classifier configured, using pattern-based detection")
		return NewFallbackClassifier(nil, opts.Timeout, opts.Logger)
	}
	return NewFallbackClassifier(primary, opts.Timeout, opts.Logger)
}
