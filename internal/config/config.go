/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus selection for multi-instance deployments.
type EventBusKind string

const (
	EventBusMemory EventBusKind = "memory"
	EventBusRedis  EventBusKind = "redis"
	EventBusNATS   EventBusKind = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment     string
	HTTPBind        string
	HTTPPort        int
	BaseURL         string // Public base URL used to build media and viewer links
	DBBackend       DatabaseBackend
	DBDSN           string
	MediaRoot       string
	MaxUploadSizeMB int
	RateLimitPerMin int    // Requests per minute per client on the record store endpoints
	ManifestPath    string // YAML manifest the server keeps in sync while running

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	EventBus      EventBusKind
	NATSURL       string
	InstanceID    string

	// Playback timing
	RefreshInterval  time.Duration
	TransitionWindow time.Duration
	DefaultDuration  time.Duration // image, news and direct video when the item has no duration
	EmbedDuration    time.Duration // embedded players when the item has no duration
	ErrorGrace       time.Duration
	NoticeDuration   time.Duration
	VideoMuted       bool
	EmbedMarkers     []string

	// Standalone player
	PlayerServerURL string
	PlayerToken     string

	LegacyEnvWarnings []string
}

// Load reads environment variables for the server commands, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := read()

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SIGNAGE_DB_DSN or GRIMNIR_DB_DSN must be provided")
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if err := cfg.validatePlayback(); err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.BaseURL == "" {
		return nil, fmt.Errorf("SIGNAGE_BASE_URL must be set in production")
	}

	return cfg, nil
}

// LoadPlayer reads the same environment as Load but only validates what the
// standalone player needs. Database settings are ignored.
func LoadPlayer() (*Config, error) {
	cfg := read()
	if err := cfg.validatePlayback(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() *Config {
	cfg := &Config{
		Environment:     getEnvAny([]string{"SIGNAGE_ENV", "GRIMNIR_ENV"}, "development"),
		HTTPBind:        getEnvAny([]string{"SIGNAGE_HTTP_BIND", "GRIMNIR_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:        getEnvIntAny([]string{"SIGNAGE_HTTP_PORT", "GRIMNIR_HTTP_PORT"}, 8080),
		BaseURL:         strings.TrimRight(getEnvAny([]string{"SIGNAGE_BASE_URL", "GRIMNIR_BASE_URL"}, ""), "/"),
		DBBackend:       DatabaseBackend(getEnvAny([]string{"SIGNAGE_DB_BACKEND", "GRIMNIR_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:           getEnvAny([]string{"SIGNAGE_DB_DSN", "GRIMNIR_DB_DSN"}, ""),
		MediaRoot:       getEnvAny([]string{"SIGNAGE_MEDIA_ROOT", "GRIMNIR_MEDIA_ROOT"}, "./media"),
		MaxUploadSizeMB: getEnvIntAny([]string{"SIGNAGE_MAX_UPLOAD_SIZE_MB", "GRIMNIR_MAX_UPLOAD_SIZE_MB"}, 0),
		RateLimitPerMin: getEnvIntAny([]string{"SIGNAGE_RATE_LIMIT_PER_MINUTE"}, 600),
		ManifestPath:    getEnvAny([]string{"SIGNAGE_MANIFEST_PATH"}, ""),

		S3AccessKeyID:     getEnvAny([]string{"SIGNAGE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SIGNAGE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"SIGNAGE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"SIGNAGE_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"SIGNAGE_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"SIGNAGE_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"SIGNAGE_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		TracingEnabled:    getEnvBoolAny([]string{"SIGNAGE_TRACING_ENABLED", "GRIMNIR_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SIGNAGE_OTLP_ENDPOINT", "GRIMNIR_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SIGNAGE_TRACING_SAMPLE_RATE", "GRIMNIR_TRACING_SAMPLE_RATE"}, 1.0),

		RedisAddr:     getEnvAny([]string{"SIGNAGE_REDIS_ADDR", "GRIMNIR_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"SIGNAGE_REDIS_PASSWORD", "GRIMNIR_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"SIGNAGE_REDIS_DB", "GRIMNIR_REDIS_DB"}, 0),
		CacheEnabled:  getEnvBoolAny([]string{"SIGNAGE_CACHE_ENABLED"}, false),
		EventBus:      EventBusKind(strings.ToLower(getEnvAny([]string{"SIGNAGE_EVENTBUS", "GRIMNIR_EVENTBUS"}, string(EventBusMemory)))),
		NATSURL:       getEnvAny([]string{"SIGNAGE_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		InstanceID:    getEnvAny([]string{"SIGNAGE_INSTANCE_ID", "GRIMNIR_INSTANCE_ID"}, ""),

		RefreshInterval:  time.Duration(getEnvIntAny([]string{"SIGNAGE_REFRESH_INTERVAL_SECONDS"}, 30)) * time.Second,
		TransitionWindow: time.Duration(getEnvIntAny([]string{"SIGNAGE_TRANSITION_MS"}, 500)) * time.Millisecond,
		DefaultDuration:  time.Duration(getEnvIntAny([]string{"SIGNAGE_DEFAULT_DURATION_SECONDS"}, 8)) * time.Second,
		EmbedDuration:    time.Duration(getEnvIntAny([]string{"SIGNAGE_EMBED_DURATION_SECONDS"}, 10)) * time.Second,
		ErrorGrace:       time.Duration(getEnvIntAny([]string{"SIGNAGE_ERROR_GRACE_MS"}, 1000)) * time.Millisecond,
		NoticeDuration:   time.Duration(getEnvIntAny([]string{"SIGNAGE_NOTICE_MS"}, 3000)) * time.Millisecond,
		VideoMuted:       getEnvBoolAny([]string{"SIGNAGE_VIDEO_MUTED"}, false),
		EmbedMarkers:     getEnvListAny([]string{"SIGNAGE_EMBED_MARKERS"}, []string{"youtube.com/embed/", "youtube-nocookie.com/embed/", "player.vimeo.com/video/"}),

		PlayerServerURL: strings.TrimRight(getEnvAny([]string{"SIGNAGE_PLAYER_SERVER"}, ""), "/"),
		PlayerToken:     getEnvAny([]string{"SIGNAGE_PLAYER_TOKEN"}, ""),
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg
}

func (c *Config) validatePlayback() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("SIGNAGE_REFRESH_INTERVAL_SECONDS must be positive")
	}
	if c.TransitionWindow < 0 {
		return fmt.Errorf("SIGNAGE_TRANSITION_MS must not be negative")
	}
	if c.DefaultDuration <= 0 || c.EmbedDuration <= 0 {
		return fmt.Errorf("fallback durations must be positive")
	}
	if c.ErrorGrace <= 0 {
		return fmt.Errorf("SIGNAGE_ERROR_GRACE_MS must be positive")
	}
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"GRIMNIR_ENV":        "use SIGNAGE_ENV",
		"GRIMNIR_DB_DSN":     "use SIGNAGE_DB_DSN",
		"GRIMNIR_REDIS_ADDR": "use SIGNAGE_REDIS_ADDR",
		"GRIMNIR_BASE_URL":   "use SIGNAGE_BASE_URL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the listen address for the HTTP server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvListAny splits the first set value on commas, dropping blanks.
func getEnvListAny(keys []string, def []string) []string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return def
}
