package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"

	"go-upload-stream/internal/engine"
)

type Config struct {
	UploadTarget        string
	SourceRoot          string
	UploadChunkSize     int64
	MaxChunkRetries     int
	ChunkRetryInterval  time.Duration
	LogLevel            string
	ProgressLogInterval time.Duration
	ControlAddr         string
	ControlJWTSecret    string
	CORSOrigins         []string
	RateLimitRPM        int
	RequestTimeout      time.Duration
	ShutdownTimeout     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		UploadTarget:        strings.TrimSpace(os.Getenv("UPLOAD_TARGET")),
		SourceRoot:          getEnv("UPLOAD_SOURCE_ROOT", "."),
		UploadChunkSize:     getInt64("UPLOAD_CHUNK_SIZE", 1<<20),
		MaxChunkRetries:     getInt("UPLOAD_MAX_CHUNK_RETRIES", 3),
		ChunkRetryInterval:  getDuration("UPLOAD_CHUNK_RETRY_INTERVAL", 2*time.Second),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ProgressLogInterval: getDuration("PROGRESS_LOG_INTERVAL", time.Second),
		ControlAddr:         strings.TrimSpace(os.Getenv("CONTROL_ADDR")),
		ControlJWTSecret:    strings.TrimSpace(os.Getenv("CONTROL_JWT_SECRET")),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:        getInt("RATE_LIMIT_RPM", 120),
		RequestTimeout:      getDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:     getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command needs. Engine settings are
// checked separately by ValidateUpload.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.ProgressLogInterval <= 0 {
		return fmt.Errorf("PROGRESS_LOG_INTERVAL must be positive")
	}

	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}

// ValidateUpload checks the engine settings.
func (c *Config) ValidateUpload() error {
	if c.UploadTarget == "" {
		return fmt.Errorf("UPLOAD_TARGET is required")
	}

	u, err := url.Parse(c.UploadTarget)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("UPLOAD_TARGET must be an http(s) URL")
	}

	if c.UploadChunkSize <= 0 {
		return fmt.Errorf("UPLOAD_CHUNK_SIZE must be positive")
	}

	if c.UploadChunkSize > engine.MaxChunkSize {
		return fmt.Errorf("UPLOAD_CHUNK_SIZE cannot exceed %s", units.BytesSize(float64(engine.MaxChunkSize)))
	}

	if c.MaxChunkRetries < 0 {
		return fmt.Errorf("UPLOAD_MAX_CHUNK_RETRIES cannot be negative")
	}

	if c.ChunkRetryInterval <= 0 {
		return fmt.Errorf("UPLOAD_CHUNK_RETRY_INTERVAL must be positive")
	}

	return nil
}

// ControlEnabled reports whether the HTTP control API should be started.
func (c *Config) ControlEnabled() bool {
	return c.ControlAddr != ""
}

// EngineOptions maps the upload settings to an engine configuration record.
func (c *Config) EngineOptions(logger *slog.Logger) engine.Options {
	return engine.Options{
		Target:             c.UploadTarget,
		ChunkSize:          c.UploadChunkSize,
		MaxChunkRetries:    c.MaxChunkRetries,
		ChunkRetryInterval: c.ChunkRetryInterval,
		Logger:             logger,
	}
}

// Level returns the configured slog level. Validate has already rejected
// unknown names.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", name)
	}
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
