package httpserver

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":8080"
	defaultAllowedOrigin = "http://localhost:3000"
	defaultJWTIssuer     = "courtbook"
	defaultEnvironment   = "development"

	defaultRateLimitRequests = 60
	defaultRateLimitWindow   = time.Minute
)

// Config aggregates runtime settings for the HTTP server.
type Config struct {
	ListenAddr     string
	Environment    string
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Validate fills defaults and ensures required settings are present.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.Environment = defaultIfEmpty(cfg.Environment, defaultEnvironment)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = defaultRateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = defaultRateLimitWindow
	}
	if strings.TrimSpace(cfg.JWTSigningKey) == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

// IsProduction reports whether the test-only surfaces must stay off.
func (cfg *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Environment), "production")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
