package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/observability"
)

var (
	// ErrSnapshotRateLimited indicates a snapshot arrived before the session's interval elapsed.
	ErrSnapshotRateLimited = errors.New("snapshot rate limit exceeded")
	// ErrSnapshotTooLarge indicates the image exceeded the configured limit.
	ErrSnapshotTooLarge = errors.New("snapshot exceeds maximum allowed size")
	// ErrInvalidSnapshot indicates the payload is not a supported image.
	ErrInvalidSnapshot = errors.New("snapshot must be a jpeg, png or webp image")
	// ErrSnapshotsDisabled indicates no snapshot storage is configured.
	ErrSnapshotsDisabled = errors.New("snapshot storage not configured")
)

// SnapshotStore uploads evidence images and returns their URL.
type SnapshotStore interface {
	UploadSnapshot(ctx context.Context, sessionID string, capturedAt time.Time, reader io.Reader) (string, error)
}

var allowedSnapshotTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// UploadSnapshot accepts one evidence image. The upload itself runs in the
// background so the candidate is never blocked on storage.
func (s *proctoringService) UploadSnapshot(ctx context.Context, sessionID, candidateID string, payload []byte, capturedAt time.Time) error {
	ctx, span := s.tracer.Start(ctx, "proctoring.snapshot")
	span.SetAttributes(
		attribute.String("proctoring.session_id", sessionID),
		attribute.Int("snapshot.size_bytes", len(payload)),
	)
	defer span.End()

	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	live, err := s.obtain(ctx, sessionID, candidateID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if int64(len(payload)) > s.cfg.MaxSnapshotBytes {
		observability.Snapshots().WithLabelValues("too_large").Inc()
		span.RecordError(ErrSnapshotTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return ErrSnapshotTooLarge
	}

	contentType := snapshotType(payload)
	span.SetAttributes(attribute.String("snapshot.detected_mime", contentType))
	if _, ok := allowedSnapshotTypes[contentType]; !ok {
		observability.Snapshots().WithLabelValues("rejected").Inc()
		span.RecordError(ErrInvalidSnapshot)
		span.SetStatus(codes.Error, "type not allowed")
		return ErrInvalidSnapshot
	}

	if !live.snapshots.Allow() {
		observability.Snapshots().WithLabelValues("rate_limited").Inc()
		span.SetStatus(codes.Error, "rate limited")
		return ErrSnapshotRateLimited
	}

	if capturedAt.IsZero() {
		capturedAt = s.now()
	}

	data := bytes.Clone(payload)
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrServiceShuttingDown
	}
	s.uploads.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.uploads.Done()
		s.storeSnapshot(live, data, contentType, capturedAt.UTC())
	}()

	span.SetStatus(codes.Ok, "accepted")
	return nil
}

func (s *proctoringService) storeSnapshot(live *liveSession, data []byte, contentType string, capturedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SnapshotTimeout)
	defer cancel()

	url, err := s.snapshots.UploadSnapshot(ctx, live.publicID, capturedAt, bytes.NewReader(data))
	if err != nil {
		observability.Snapshots().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("session_id", live.publicID).Msg("failed to upload snapshot")
		return
	}

	record := models.SessionSnapshot{
		SessionID:   live.recordID,
		URL:         url,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		CapturedAt:  capturedAt,
	}
	if err := s.repo.CreateSnapshot(ctx, &record); err != nil {
		observability.Snapshots().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("session_id", live.publicID).Msg("failed to record snapshot")
		return
	}
	observability.Snapshots().WithLabelValues("stored").Inc()
}

func snapshotType(payload []byte) string {
	detected := mimetype.Detect(payload).String()
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		detected = detected[:idx]
	}
	return strings.ToLower(strings.TrimSpace(detected))
}
