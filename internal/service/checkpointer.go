package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/observability"
	"github.com/noah-isme/gema-proctor-api/internal/proctor"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
)

// checkpointer persists session counters off the monitor goroutine. It holds
// at most one pending write; a newer checkpoint replaces an unwritten one.
type checkpointer struct {
	repo      repository.ProctoringSessionRepository
	sessionID string
	timeout   time.Duration
	logger    zerolog.Logger

	slot      chan proctor.MalpracticeCounters
	done      chan struct{}
	closeOnce sync.Once
}

func newCheckpointer(repo repository.ProctoringSessionRepository, sessionID string, timeout time.Duration, logger zerolog.Logger) *checkpointer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &checkpointer{
		repo:      repo,
		sessionID: sessionID,
		timeout:   timeout,
		logger:    logger,
		slot:      make(chan proctor.MalpracticeCounters, 1),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

// Offer never blocks. It must only be called from the monitor goroutine.
func (c *checkpointer) Offer(state proctor.SessionState) {
	counters := state.Counters
	select {
	case c.slot <- counters:
		return
	default:
	}
	select {
	case <-c.slot:
	default:
	}
	select {
	case c.slot <- counters:
	default:
	}
}

// Close flushes the pending write and waits for the writer to exit. The
// monitor must be stopped first.
func (c *checkpointer) Close() {
	c.closeOnce.Do(func() { close(c.slot) })
	<-c.done
}

func (c *checkpointer) run() {
	defer close(c.done)
	for counters := range c.slot {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		err := c.repo.Checkpoint(ctx, c.sessionID, counters)
		cancel()

		switch {
		case err == nil:
			observability.Checkpoints().WithLabelValues("ok").Inc()
		case errors.Is(err, repository.ErrSessionCompleted):
			observability.Checkpoints().WithLabelValues("closed").Inc()
		default:
			observability.Checkpoints().WithLabelValues("failed").Inc()
			c.logger.Warn().Err(err).Str("session_id", c.sessionID).Msg("failed to checkpoint session")
		}
	}
}
