package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("PROCTOR_JWT_SECRET", "secret")
	t.Setenv("PROCTOR_JWT_REFRESH_SECRET", "refresh")
}

func TestLoadAppliesEngineDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 250*time.Millisecond, cfg.Engine.TickInterval)
	require.Equal(t, 3*time.Second, cfg.Engine.SnapshotInterval)
	require.Equal(t, 0.18, cfg.Engine.BlinkThreshold)
	require.Equal(t, 8, cfg.Engine.AwayDebounce)
	require.Equal(t, 0.15, cfg.Engine.EmotionThreshold)
	require.Equal(t, 10, cfg.LeaderboardDefaultTop)
}

func TestLoadReadsOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("PROCTOR_APP_PORT", ":9090")
	t.Setenv("PROCTOR_DATABASE_DRIVER", "SQLite")
	t.Setenv("PROCTOR_ENGINE_TICK_INTERVAL", "100ms")
	t.Setenv("PROCTOR_ENGINE_YAW_LIMIT", "30")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 100*time.Millisecond, cfg.Engine.TickInterval)
	require.Equal(t, float64(30), cfg.Engine.YawLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("PROCTOR_JWT_SECRET", "")
		t.Setenv("PROCTOR_JWT_REFRESH_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("PROCTOR_ENGINE_SNAPSHOT_INTERVAL", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "engine.snapshot_interval")
	})

	t.Run("unknown driver", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("PROCTOR_DATABASE_DRIVER", "oracle")
		_, err := Load()
		require.ErrorContains(t, err, "oracle")
	})
}
