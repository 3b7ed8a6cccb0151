package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all recognized options. Everything comes from the
// environment so main stays lean and deployments stay declarative.
type Config struct {
	Server   Server
	Signing  Signing
	Ledger   Ledger
	Mirror   Mirror
	Redis    Redis
	Kafka    Kafka
	Honoring Honoring
	Webhook  Webhook
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Signing holds the attestation signing key material.
type Signing struct {
	// SeedHex is a 32-byte ed25519 seed, hex encoded. Generated when empty so
	// development works out of the box; production must pin one.
	SeedHex string
	Signer  string
}

// Ledger points at the authoritative clearing cluster.
type Ledger struct {
	ClusterAddr     string
	Partition       uint32
	Code            string
	TreasuryAccount string
	CallTimeout     time.Duration
	// RejectCodeMap overrides the numeric-code mapping of the ledger
	// protocol's rejection reasons, e.g. "21=exists,42=insufficient_funds".
	RejectCodeMap string
}

// Mirror configures the narrative mirror store.
type Mirror struct {
	DatabaseURL string
	QueueSize   int
}

// Redis configures the optional honoring result store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the lifecycle event publisher.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Honoring configures the generic retry driver and per-provider credentials.
type Honoring struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Concurrency    int

	GiftCard Provider
	Payout   Provider
}

// Provider holds one honoring provider's credentials and mode.
type Provider struct {
	APIKey  string
	BaseURL string
	Sandbox bool
}

// Webhook configures provider callback ingestion.
type Webhook struct {
	VerifySignatures bool
	Secret           string
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("VALCORE_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Signing: Signing{
			SeedHex: os.Getenv("ATTEST_SIGNING_SEED"),
			Signer:  envOr("ATTEST_SIGNER", "valcore-attestor"),
		},
		Ledger: Ledger{
			ClusterAddr:     envOr("LEDGER_CLUSTER_ADDR", ""),
			Partition:       uint32(envInt("LEDGER_PARTITION", 1)),
			Code:            envOr("LEDGER_CODE", "USD"),
			TreasuryAccount: os.Getenv("LEDGER_TREASURY_ACCOUNT"),
			CallTimeout:     envDuration("LEDGER_CALL_TIMEOUT", 10*time.Second),
			RejectCodeMap:   os.Getenv("LEDGER_REJECT_CODE_MAP"),
		},
		Mirror: Mirror{
			DatabaseURL: os.Getenv("MIRROR_DATABASE_URL"),
			QueueSize:   envInt("MIRROR_QUEUE_SIZE", 1024),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "valcore.lifecycle"),
		},
		Honoring: Honoring{
			MaxAttempts:    envInt("HONORING_MAX_ATTEMPTS", 3),
			BaseDelay:      envDuration("HONORING_BASE_DELAY", time.Second),
			MaxDelay:       envDuration("HONORING_MAX_DELAY", 10*time.Second),
			AttemptTimeout: envDuration("HONORING_ATTEMPT_TIMEOUT", 30*time.Second),
			Concurrency:    envInt("HONORING_CONCURRENCY", 8),
			GiftCard: Provider{
				APIKey:  os.Getenv("GIFTCARD_API_KEY"),
				BaseURL: os.Getenv("GIFTCARD_BASE_URL"),
				Sandbox: os.Getenv("GIFTCARD_SANDBOX") != "false",
			},
			Payout: Provider{
				APIKey:  os.Getenv("PAYOUT_API_KEY"),
				BaseURL: os.Getenv("PAYOUT_BASE_URL"),
				Sandbox: os.Getenv("PAYOUT_SANDBOX") != "false",
			},
		},
		Webhook: Webhook{
			VerifySignatures: os.Getenv("WEBHOOK_VERIFY_SIGNATURES") == "true",
			Secret:           os.Getenv("WEBHOOK_SECRET"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
