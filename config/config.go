// Package config loads cmd/example's runtime configuration from flags
// and a local .env file, in the teacher's flag-plus-env style.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds cmd/example's configuration.
type Config struct {
	TargetURL    string
	UserAgent    string
	SockConnect  time.Duration
	SockRead     time.Duration
	PoolSize     int
	VerifySSL    bool
	HTTP2Enabled bool
	LogLevel     string
}

// New loads configuration from a local .env file (if present) and CLI
// flags, flags taking precedence.
func New() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg := &Config{}

	flag.StringVar(&cfg.TargetURL, "url", envOr("FASTCLIENT_URL", "https://example.com/"), "target URL to request")
	flag.StringVar(&cfg.UserAgent, "user-agent", envOr("FASTCLIENT_USER_AGENT", "fastclient/1.0"), "User-Agent header value")
	flag.DurationVar(&cfg.SockConnect, "sock-connect-timeout", 10*time.Second, "TCP connect timeout")
	flag.DurationVar(&cfg.SockRead, "sock-read-timeout", 30*time.Second, "socket read timeout")
	flag.IntVar(&cfg.PoolSize, "pool-size", 8, "connections per origin pool")
	flag.BoolVar(&cfg.VerifySSL, "verify-ssl", true, "verify TLS certificates")
	flag.BoolVar(&cfg.HTTP2Enabled, "http2", false, "advertise h2 via ALPN")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("FASTCLIENT_LOG_LEVEL", "info"), "zerolog level")

	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
