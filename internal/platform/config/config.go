package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EditPolicy decides where a membership edit re-enters the questionnaire.
type EditPolicy string

const (
	// EditPolicyRevisit keeps the stored answers as defaults.
	EditPolicyRevisit EditPolicy = "revisit"
	// EditPolicyRestart discards stored answers and starts from the first question.
	EditPolicyRestart EditPolicy = "restart"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	HTTP        HTTPConfig
	DatabaseURL string
	JWT         JWTConfig
	Redis       RedisConfig
	SMTP        SMTPConfig
	Kafka       KafkaConfig

	// RoleCacheTTL bounds how long a caller's role may be served from cache.
	RoleCacheTTL time.Duration
	// AdmissionBatchConcurrency caps parallel notifications in approve/deny batches.
	AdmissionBatchConcurrency int
	EditPolicy                EditPolicy
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// RedisConfig configures the optional Redis connection. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPConfig carries server timeouts. Zero values use the server defaults.
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SMTPConfig configures outbound email. An empty Host logs notifications instead.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BreakerThreshold consecutive send failures open the circuit for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// KafkaConfig configures the audit event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Only values with no safe fallback produce an error.
func FromEnv() (Server, error) {
	policy := EditPolicy(getEnv("MEMBERSHIP_EDIT_POLICY", string(EditPolicyRevisit)))
	if policy != EditPolicyRevisit && policy != EditPolicyRestart {
		return Server{}, fmt.Errorf("invalid MEMBERSHIP_EDIT_POLICY %q: must be revisit or restart", policy)
	}

	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return Server{
		Addr:        getEnv("MEMBERDIR_ADDR", ":8080"),
		HTTP: HTTPConfig{
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 0),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 0),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 0),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWT: JWTConfig{
			// Use a default for development - should be overridden in production
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "memberdir-idp"),
			Audience:   getEnv("JWT_AUDIENCE", "memberdir"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "directory@example.org"),

			BreakerThreshold: getEnvInt("SMTP_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  getEnvDuration("SMTP_BREAKER_COOLDOWN", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "memberdir.admission"),
		},
		RoleCacheTTL:              getEnvDuration("ROLE_CACHE_TTL", time.Minute),
		AdmissionBatchConcurrency: getEnvInt("ADMISSION_BATCH_CONCURRENCY", 8),
		EditPolicy:                policy,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
