package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MEMBERSHIP_EDIT_POLICY", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ROLE_CACHE_TTL", "")
	t.Setenv("SMTP_BREAKER_THRESHOLD", "")
	t.Setenv("SMTP_BREAKER_COOLDOWN", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, EditPolicyRevisit, cfg.EditPolicy)
	assert.Equal(t, time.Minute, cfg.RoleCacheTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.AdmissionBatchConcurrency)
	assert.Equal(t, 5, cfg.SMTP.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.SMTP.BreakerCooldown)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MEMBERSHIP_EDIT_POLICY", "restart")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ROLE_CACHE_TTL", "30s")
	t.Setenv("ADMISSION_BATCH_CONCURRENCY", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, EditPolicyRestart, cfg.EditPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
	assert.Equal(t, 8, cfg.AdmissionBatchConcurrency)
}

func TestFromEnvRejectsUnknownEditPolicy(t *testing.T) {
	t.Setenv("MEMBERSHIP_EDIT_POLICY", "sometimes")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMBERSHIP_EDIT_POLICY")
}
