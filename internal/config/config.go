package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSAllowOrigins       string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	RedisChannel           string
	NATSURL                string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	LeaderboardCacheTTL    time.Duration
	LeaderboardDefaultTop  int
	AIProvider             string
	AITimeout              time.Duration
	OpenAIAPIKey           string
	OpenAIModel            string
	AnthropicAPIKey        string
	AnthropicModel         string
	Engine                 EngineConfig
}

// EngineConfig carries the detection thresholds and loop timings.
type EngineConfig struct {
	TickInterval       time.Duration
	CheckpointInterval time.Duration
	SnapshotInterval   time.Duration
	FrameMaxAge        time.Duration
	BlinkThreshold     float64
	MaxBlinkRate       float64
	YawLimit           float64
	PitchLimit         float64
	AwayDebounce       int
	LateralLimit       float64
	GazeHorizontalMin  float64
	GazeHorizontalMax  float64
	GazeVerticalMin    float64
	GazeVerticalMax    float64
	EmotionThreshold   float64
	EmotionNormalizer  float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROCTOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Proctor API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("redis.channel", "proctor:violations")
	v.SetDefault("cloudinary.folder", "proctor/snapshots")
	v.SetDefault("leaderboard.cache_ttl", "2m")
	v.SetDefault("leaderboard.default_top", 10)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout", "15s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")

	v.SetDefault("engine.tick_interval", "250ms")
	v.SetDefault("engine.checkpoint_interval", "3s")
	v.SetDefault("engine.snapshot_interval", "3s")
	v.SetDefault("engine.frame_max_age", "2s")
	v.SetDefault("engine.blink_threshold", 0.18)
	v.SetDefault("engine.max_blink_rate", 25)
	v.SetDefault("engine.yaw_limit", 25)
	v.SetDefault("engine.pitch_limit", 20)
	v.SetDefault("engine.away_debounce", 8)
	v.SetDefault("engine.lateral_limit", 40)
	v.SetDefault("engine.gaze_horizontal_min", 0.40)
	v.SetDefault("engine.gaze_horizontal_max", 0.60)
	v.SetDefault("engine.gaze_vertical_min", 0.30)
	v.SetDefault("engine.gaze_vertical_max", 0.70)
	v.SetDefault("engine.emotion_threshold", 0.15)
	v.SetDefault("engine.emotion_normalizer", 0.8)

	durations := make(map[string]time.Duration)
	for _, key := range []string{
		"leaderboard.cache_ttl",
		"ai.timeout",
		"engine.tick_interval",
		"engine.checkpoint_interval",
		"engine.snapshot_interval",
		"engine.frame_max_age",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		RedisChannel:           v.GetString("redis.channel"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		LeaderboardCacheTTL:    durations["leaderboard.cache_ttl"],
		LeaderboardDefaultTop:  v.GetInt("leaderboard.default_top"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		AITimeout:              durations["ai.timeout"],
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		AnthropicModel:         v.GetString("anthropic.model"),
		Engine: EngineConfig{
			TickInterval:       durations["engine.tick_interval"],
			CheckpointInterval: durations["engine.checkpoint_interval"],
			SnapshotInterval:   durations["engine.snapshot_interval"],
			FrameMaxAge:        durations["engine.frame_max_age"],
			BlinkThreshold:     v.GetFloat64("engine.blink_threshold"),
			MaxBlinkRate:       v.GetFloat64("engine.max_blink_rate"),
			YawLimit:           v.GetFloat64("engine.yaw_limit"),
			PitchLimit:         v.GetFloat64("engine.pitch_limit"),
			AwayDebounce:       v.GetInt("engine.away_debounce"),
			LateralLimit:       v.GetFloat64("engine.lateral_limit"),
			GazeHorizontalMin:  v.GetFloat64("engine.gaze_horizontal_min"),
			GazeHorizontalMax:  v.GetFloat64("engine.gaze_horizontal_max"),
			GazeVerticalMin:    v.GetFloat64("engine.gaze_vertical_min"),
			GazeVerticalMax:    v.GetFloat64("engine.gaze_vertical_max"),
			EmotionThreshold:   v.GetFloat64("engine.emotion_threshold"),
			EmotionNormalizer:  v.GetFloat64("engine.emotion_normalizer"),
		},
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.LeaderboardDefaultTop <= 0 {
		cfg.LeaderboardDefaultTop = 10
	}

	return cfg, nil
}
