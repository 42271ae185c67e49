package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, 3, cfg.Sync.MaxTransientRetries)
	assert.Equal(t, 5, cfg.Sync.MaxRateLimitRetries)
	assert.Equal(t, "2024-01", cfg.Shopify.APIVersion)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.HasCredentials("shopify"))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("SYNC_INTERVAL_MINUTES", "1")
	t.Setenv("SYNC_CALL_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 5*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.HasCredentials("shopify"))
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown store driver", "STORE_DRIVER", "mongo"},
		{"page size too large", "SYNC_PAGE_SIZE", "1000"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"non numeric port", "PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestConfig_ValidateRetryDelays(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Sync.RetryMaxDelay = cfg.Sync.RetryBaseDelay / 2
	assert.Error(t, cfg.Validate())
}
