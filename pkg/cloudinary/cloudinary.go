package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores session evidence snapshots in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// UploadSnapshot stores one evidence image under the session's folder and
// returns its secure URL.
func (s *Service) UploadSnapshot(ctx context.Context, sessionID string, capturedAt time.Time, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       SnapshotFolder(s.folder, sessionID),
		PublicID:     SnapshotPublicID(capturedAt),
		ResourceType: "image",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.logger.Debug().Str("public_id", result.PublicID).Str("session_id", sessionID).Msg("snapshot uploaded to cloudinary")

	return result.SecureURL, nil
}

// SnapshotFolder is the per-session folder below the configured root.
func SnapshotFolder(root, sessionID string) string {
	id := sanitize(sessionID)
	if id == "" {
		id = "unknown"
	}
	root = strings.Trim(root, "/")
	if root == "" {
		return id
	}
	return path.Join(root, id)
}

// SnapshotPublicID names a snapshot by its capture time in milliseconds.
func SnapshotPublicID(capturedAt time.Time) string {
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	return fmt.Sprintf("snap-%d", capturedAt.UTC().UnixMilli())
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, name)
	return strings.Trim(name, "-")
}
