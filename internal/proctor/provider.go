package proctor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	// ErrProviderUnavailable means the landmark source cannot produce frames yet.
	ErrProviderUnavailable = errors.New("landmark provider unavailable")
	// ErrProviderClosed is returned after a provider has released its resources.
	ErrProviderClosed = errors.New("landmark provider closed")
)

// LandmarkProvider yields the most recent analysed frame. A nil frame with a
// nil error means nothing was detected.
type LandmarkProvider interface {
	Detect(ctx context.Context) (*LandmarkFrame, error)
	Close() error
}

// Warmer is implemented by providers that load asynchronously before they can
// serve frames.
type Warmer interface {
	Ready(ctx context.Context) error
}

// BackoffConfig controls warm-up retries.
type BackoffConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
	OnRetry        func(attempt int, err error)
}

// DefaultBackoffConfig retries warm-up for roughly half a minute.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:    8,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	def := DefaultBackoffConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

func (c BackoffConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.JitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * c.JitterFraction
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// WarmUp waits for p to become ready. Providers that do not implement Warmer
// are ready immediately. Cancellation stops the retries.
func WarmUp(ctx context.Context, p LandmarkProvider, cfg BackoffConfig) error {
	w, ok := p.(Warmer)
	if !ok {
		return nil
	}
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if lastErr = w.Ready(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// FeedProvider serves frames pushed by a remote landmark model. Only the most
// recent frame is kept; frames older than maxAge read as empty.
type FeedProvider struct {
	mu     sync.Mutex
	latest *LandmarkFrame
	seenAt time.Time
	closed bool
	maxAge time.Duration
	now    func() time.Time
}

// NewFeedProvider creates an empty feed. maxAge <= 0 disables staleness checks.
func NewFeedProvider(maxAge time.Duration) *FeedProvider {
	return &FeedProvider{maxAge: maxAge, now: time.Now}
}

// Push replaces the latest frame.
func (p *FeedProvider) Push(frame LandmarkFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProviderClosed
	}
	f := frame
	p.latest = &f
	p.seenAt = p.now()
	return nil
}

// Ready fails until the first frame has arrived.
func (p *FeedProvider) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProviderClosed
	}
	if p.latest == nil {
		return ErrProviderUnavailable
	}
	return nil
}

// Detect returns a copy of the latest frame.
func (p *FeedProvider) Detect(ctx context.Context) (*LandmarkFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.latest == nil:
		return nil, ErrProviderUnavailable
	case p.maxAge > 0 && p.now().Sub(p.seenAt) > p.maxAge:
		return nil, nil
	}
	f := *p.latest
	return &f, nil
}

// Close drops the buffered frame and rejects further pushes.
func (p *FeedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.latest = nil
	return nil
}
