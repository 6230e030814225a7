package proctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeedProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := testEpoch
	feed := NewFeedProvider(time.Second)
	feed.now = func() time.Time { return clock }

	_, err := feed.Detect(ctx)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	require.ErrorIs(t, feed.Ready(ctx), ErrProviderUnavailable)

	require.NoError(t, feed.Push(faceFrame(frontalMesh())))
	require.NoError(t, feed.Ready(ctx))

	frame, err := feed.Detect(ctx)
	require.NoError(t, err)
	require.NotNil(t, frame)
	require.Equal(t, 1, frame.FaceCount())

	clock = clock.Add(2 * time.Second)
	frame, err = feed.Detect(ctx)
	require.NoError(t, err)
	require.Nil(t, frame)

	require.NoError(t, feed.Close())
	require.ErrorIs(t, feed.Push(faceFrame(frontalMesh())), ErrProviderClosed)
	_, err = feed.Detect(ctx)
	require.ErrorIs(t, err, ErrProviderClosed)
}

func TestFeedProviderReturnsCopies(t *testing.T) {
	feed := NewFeedProvider(0)
	require.NoError(t, feed.Push(faceFrame(frontalMesh())))

	first, err := feed.Detect(context.Background())
	require.NoError(t, err)
	first.Detections = nil

	second, err := feed.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Detections, 1)
}

type flakyWarmer struct {
	FeedProvider
	failures int
	calls    int
}

func (f *flakyWarmer) Ready(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("model still loading")
	}
	return nil
}

func TestWarmUpRetriesWithBackoff(t *testing.T) {
	p := &flakyWarmer{failures: 2}
	var retries []int
	cfg := BackoffConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		OnRetry:        func(attempt int, err error) { retries = append(retries, attempt) },
	}

	require.NoError(t, WarmUp(context.Background(), p, cfg))
	require.Equal(t, 3, p.calls)
	require.Equal(t, []int{1, 2}, retries)
}

func TestWarmUpGivesUpAfterMaxAttempts(t *testing.T) {
	p := &flakyWarmer{failures: 10}
	cfg := BackoffConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	err := WarmUp(context.Background(), p, cfg)
	require.EqualError(t, err, "model still loading")
	require.Equal(t, 3, p.calls)
}

func TestWarmUpStopsOnCancel(t *testing.T) {
	p := &flakyWarmer{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cfg := BackoffConfig{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	require.ErrorIs(t, WarmUp(ctx, p, cfg), context.Canceled)
}

type plainProvider struct{}

func (plainProvider) Detect(context.Context) (*LandmarkFrame, error) { return nil, nil }
func (plainProvider) Close() error                                   { return nil }

func TestWarmUpWithoutWarmerIsImmediate(t *testing.T) {
	require.NoError(t, WarmUp(context.Background(), plainProvider{}, BackoffConfig{}))
}

func TestBackoffDelayIsCapped(t *testing.T) {
	cfg := BackoffConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.withDefaults()

	require.Equal(t, 100*time.Millisecond, cfg.delay(0))
	require.Equal(t, 400*time.Millisecond, cfg.delay(2))
	require.Equal(t, time.Second, cfg.delay(10))
}
