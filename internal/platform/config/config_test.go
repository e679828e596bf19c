package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "consortium-governance", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.WorkerPollInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.EnableTimeoutKeeper)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000001000"), cfg.Governance())
	assert.Empty(t, cfg.ValidImplementations())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PROXY_IMPLEMENTATIONS", "0x0000000000000000000000000000000000000abc, 0x0000000000000000000000000000000000000def")
	t.Setenv("ENABLE_OUTBOX_RELAY", "false")
	t.Setenv("WORKER_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.EnableOutboxRelay)
	assert.Equal(t, 500*time.Millisecond, cfg.WorkerPollInterval)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000abc"),
		common.HexToAddress("0x0000000000000000000000000000000000000def"),
	}, cfg.ValidImplementations())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("GOVERNANCE_ADDRESS", "governance")
	_, err := Load()
	require.ErrorContains(t, err, "GOVERNANCE_ADDRESS")

	t.Setenv("GOVERNANCE_ADDRESS", "0x0000000000000000000000000000000000001000")
	t.Setenv("OUTBOX_BATCH_SIZE", "ten")
	_, err = Load()
	require.ErrorContains(t, err, "parse env:")
}
