package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"ACTIONPLAN_ADDR", "PUBLIC_BASE_URL", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS",
		"GATEWAY_TIMEOUT", "LOCK_TTL", "MAX_UPLOAD_BYTES", "STRICT_LAYOUT", "ALLOW_PARTIAL_METADATA",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.StrictLayout)
	assert.False(t, cfg.AllowPartialMetadata)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ACTIONPLAN_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("STRICT_LAYOUT", "true")
	t.Setenv("ALLOW_PARTIAL_METADATA", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.True(t, cfg.StrictLayout)
	assert.True(t, cfg.AllowPartialMetadata)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"GATEWAY_TIMEOUT":        "soon",
		"LOCK_TTL":               "-1s",
		"MAX_UPLOAD_BYTES":       "big",
		"STRICT_LAYOUT":          "maybe",
		"ALLOW_PARTIAL_METADATA": "yes please",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}
