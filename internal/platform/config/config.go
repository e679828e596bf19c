package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `env:"SERVICE_NAME" envDefault:"consortium-governance"`
	HTTPPort     string   `env:"HTTP_PORT" envDefault:"8080"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate       bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	GovernanceAddress string        `env:"GOVERNANCE_ADDRESS" envDefault:"0x0000000000000000000000000000000000001000"`
	Implementations   []string      `env:"PROXY_IMPLEMENTATIONS" envSeparator:","`
	GenesisPath       string        `env:"GENESIS_PATH"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	WorkerPollInterval  time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	TimeoutBatchSize    int           `env:"TIMEOUT_BATCH_SIZE" envDefault:"100"`
	EnableTimeoutKeeper bool          `env:"ENABLE_TIMEOUT_KEEPER" envDefault:"true"`
	EnableOutboxRelay   bool          `env:"ENABLE_OUTBOX_RELAY" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !common.IsHexAddress(c.GovernanceAddress) {
		return fmt.Errorf("GOVERNANCE_ADDRESS %q is not a hex address", c.GovernanceAddress)
	}
	for _, impl := range c.Implementations {
		if !common.IsHexAddress(strings.TrimSpace(impl)) {
			return fmt.Errorf("PROXY_IMPLEMENTATIONS entry %q is not a hex address", impl)
		}
	}
	if c.WorkerPollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if c.OutboxBatchSize <= 0 || c.TimeoutBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	return nil
}

// Governance is the engine's own address.
func (c Config) Governance() common.Address {
	return common.HexToAddress(c.GovernanceAddress)
}

// ValidImplementations lists the addresses the proxy may be upgraded to.
func (c Config) ValidImplementations() []common.Address {
	out := make([]common.Address, 0, len(c.Implementations))
	for _, impl := range c.Implementations {
		out = append(out, common.HexToAddress(strings.TrimSpace(impl)))
	}
	return out
}
