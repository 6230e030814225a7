package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/proctor"
)

// violationEnvelope is the broker payload for one violation report.
type violationEnvelope struct {
	Event     string                  `json:"event"`
	Source    string                  `json:"source"`
	Report    proctor.ViolationReport `json:"report"`
	Published time.Time               `json:"published_at"`
}

// BrokerViolationSink fans violation reports out to Redis pub/sub and NATS.
// Either transport may be nil; with neither configured reports are only logged.
type BrokerViolationSink struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewBrokerViolationSink builds the sink. channelBase such as
// "proctor:violations" maps to the NATS subject "proctor.violations".
func NewBrokerViolationSink(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *BrokerViolationSink {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase
		natsSubject = strings.ReplaceAll(channelBase, ":", ".")
	}

	return &BrokerViolationSink{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "violation_sink").Logger(),
	}
}

// Report publishes report on every configured transport. Failures are
// joined so one broken transport does not hide the other.
func (s *BrokerViolationSink) Report(ctx context.Context, report proctor.ViolationReport) error {
	payload, err := json.Marshal(violationEnvelope{
		Event:     "violation",
		Source:    s.nodeID,
		Report:    report,
		Published: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode violation report: %w", err)
	}

	var errs []error
	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject+"."+string(report.Type), payload); err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}

	s.logger.Info().
		Str("session_id", report.SessionID).
		Str("type", string(report.Type)).
		Str("severity", string(report.Severity)).
		Int("count", report.Count).
		Msg("violation reported")

	return errors.Join(errs...)
}
