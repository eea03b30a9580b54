// Package config defines the top-level configuration for the chainbook
// reconciliation engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CHAINBOOK_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Oracle   OracleConfig   `toml:"oracle"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds RPC parameters and the per-chain protocol addresses the
// adapters need.
type ChainConfig struct {
	RPCURL  string `toml:"rpc_url"`
	ChainID int64  `toml:"chain_id"`

	// WrappedNative is the wrapped-native token treated as equivalent to
	// the native currency for conversion purposes.
	WrappedNative string `toml:"wrapped_native"`

	CollectionPoolFactory    string   `toml:"collection_pool_factory"`
	SweepProtocolFeeAddress  string   `toml:"sweep_protocol_fee_address"`
	MarketplaceFeeRecipients []string `toml:"marketplace_fee_recipients"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for batch result
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// EngineConfig holds the reconciliation engine's tuning knobs.
type EngineConfig struct {
	// MaxPricePoints caps how many discrete price points are sampled from
	// a pool's bonding curve.
	MaxPricePoints int `toml:"max_price_points"`
	// MaxTokenSetSize caps token-list membership; larger lists are
	// rejected, never truncated.
	MaxTokenSetSize int `toml:"max_token_set_size"`
	// BatchConcurrency bounds concurrent notices per reconcile batch.
	BatchConcurrency int `toml:"batch_concurrency"`
	// TokenConcurrency bounds concurrent per-token-id work fanned out from
	// one pool's sell-side enumeration.
	TokenConcurrency int `toml:"token_concurrency"`
	// RecheckCooldownSeconds is the minimum age of a row before a forced
	// recheck may overwrite it.
	RecheckCooldownSeconds int `toml:"recheck_cooldown_seconds"`

	NoticeStream    string `toml:"notice_stream"`
	ResultStream    string `toml:"result_stream"`
	IntakeBatchSize int    `toml:"intake_batch_size"`
	IntakeBlockMS   int    `toml:"intake_block_ms"`
}

// RecheckCooldown returns the cooldown window as a duration.
func (e EngineConfig) RecheckCooldown() time.Duration {
	return time.Duration(e.RecheckCooldownSeconds) * time.Second
}

// OracleConfig holds the USD price oracle parameters.
type OracleConfig struct {
	CoingeckoBaseURL string `toml:"coingecko_base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	// StablecoinsAt1USD lists currencies quoted 1:1 with USD without an
	// upstream lookup.
	StablecoinsAt1USD []string `toml:"stablecoins_at_1_usd"`
}

// Defaults returns a Config populated with sane defaults; Load merges the
// TOML file on top of these.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Engine: EngineConfig{
			MaxPricePoints:         30,
			MaxTokenSetSize:        10000,
			BatchConcurrency:       20,
			TokenConcurrency:       50,
			RecheckCooldownSeconds: 3600,
			NoticeStream:           "chainbook:notices",
			ResultStream:           "chainbook:order-updates",
			IntakeBatchSize:        100,
			IntakeBlockMS:          5000,
		},
		Oracle: OracleConfig{
			CoingeckoBaseURL: "https://api.coingecko.com/api/v3",
			TimeoutSeconds:   10,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	var problems []string

	if c.Chain.RPCURL == "" {
		problems = append(problems, "chain.rpc_url is required")
	}
	if c.Chain.ChainID == 0 {
		problems = append(problems, "chain.chain_id is required")
	}
	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		problems = append(problems, "postgres.dsn or postgres.{host,database,user} is required")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is required")
	}
	if c.Engine.MaxPricePoints <= 0 {
		problems = append(problems, "engine.max_price_points must be positive")
	}
	if c.Engine.BatchConcurrency <= 0 || c.Engine.TokenConcurrency <= 0 {
		problems = append(problems, "engine concurrency bounds must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		problems = append(problems, "s3.bucket is required when s3.enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
