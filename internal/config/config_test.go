package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInventoryDefaults(t *testing.T) {
	cfg, err := LoadInventory()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "inventory.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.CASMaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.CASBackoff)
	assert.Equal(t, time.Hour, cfg.StockCacheTTL)
}

func TestLoadInventoryOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("CAS_MAX_ATTEMPTS", "8")
	t.Setenv("CAS_BACKOFF_MS", "20")
	t.Setenv("STOCK_CACHE_TTL_SEC", "120")

	cfg, err := LoadInventory()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.CASMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.CASBackoff)
	assert.Equal(t, 2*time.Minute, cfg.StockCacheTTL)
}

func TestLoadInventoryInvalid(t *testing.T) {
	t.Setenv("CAS_MAX_ATTEMPTS", "zero")
	_, err := LoadInventory()
	assert.Error(t, err)
}

func TestLoadInventoryRejectsNonPositive(t *testing.T) {
	t.Setenv("CAS_MAX_ATTEMPTS", "0")
	_, err := LoadInventory()
	assert.Error(t, err)
}

func TestLoadOrderDefaults(t *testing.T) {
	cfg, err := LoadOrder()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:8081", cfg.InventoryBaseURL)
	assert.Equal(t, 3, cfg.ReserveMaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "order-status-events", cfg.KafkaTopic)
	assert.Equal(t, "orders:status_events", cfg.OrderEventStream)
}

func TestLoadOrderOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RESERVE_MAX_ATTEMPTS", "5")
	t.Setenv("RESERVE_BACKOFF_MS", "50")
	t.Setenv("IDEMPOTENCY_TTL_HOUR", "48")

	cfg, err := LoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.ReserveMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.ReserveBackoff)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadOrderInvalid(t *testing.T) {
	t.Setenv("RESERVE_TIMEOUT_MS", "-1")
	_, err := LoadOrder()
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))
	assert.Empty(t, splitCSV(" , "))
}
