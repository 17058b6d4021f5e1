package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string

	// OwnerAddress is the hex address of the single registry
	// administrator. Every owner-gated mutation compares the caller
	// against it.
	OwnerAddress string

	// AdminTokenHash is the bcrypt hash of the admin API token that
	// gates the administrative HTTP routes. When empty, every admin
	// request is rejected.
	AdminTokenHash string

	// PostgresDSN selects the postgres-backed stores when set; the
	// in-memory stores are used otherwise.
	PostgresDSN string

	// RedisURL enables the verification result cache when set.
	RedisURL string

	// KafkaBrokers enables the audit event stream when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// MaxUploadBytes bounds document uploads before hashing.
	MaxUploadBytes int64

	// RequestTimeout is the per-request deadline; the listener's read and
	// write limits are derived from it.
	RequestTimeout time.Duration

	// VerifyCacheTTL bounds staleness of cached verification results.
	VerifyCacheTTL time.Duration
}

const (
	defaultAddr           = ":8080"
	defaultAuditTopic     = "attest.audit"
	defaultMaxUploadBytes = 16 << 20
	defaultRequestTimeout = 30 * time.Second
	defaultVerifyCacheTTL = 5 * time.Minute
)

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:           envOr("ATTEST_ADDR", defaultAddr),
		OwnerAddress:   os.Getenv("ATTEST_OWNER_ADDRESS"),
		AdminTokenHash: os.Getenv("ATTEST_ADMIN_TOKEN_HASH"),
		PostgresDSN:    os.Getenv("ATTEST_POSTGRES_DSN"),
		RedisURL:       os.Getenv("ATTEST_REDIS_URL"),
		AuditTopic:     envOr("ATTEST_AUDIT_TOPIC", defaultAuditTopic),
		MaxUploadBytes: envInt64("ATTEST_MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		RequestTimeout: envDuration("ATTEST_REQUEST_TIMEOUT", defaultRequestTimeout),
		VerifyCacheTTL: envDuration("ATTEST_VERIFY_CACHE_TTL", defaultVerifyCacheTTL),
	}
	if brokers := os.Getenv("ATTEST_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
