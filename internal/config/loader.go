package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "CHAINBOOK_"

// Load reads configuration from the given TOML file (optional), applies
// .env if present, and then environment variable overrides. Environment
// variables win over the file; the file wins over Defaults().
func Load(path string) (Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Chain.RPCURL, "CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "CHAIN_ID")
	setStr(&cfg.Chain.WrappedNative, "CHAIN_WRAPPED_NATIVE")
	setStr(&cfg.Chain.CollectionPoolFactory, "CHAIN_COLLECTION_POOL_FACTORY")
	setStr(&cfg.Chain.SweepProtocolFeeAddress, "CHAIN_SWEEP_PROTOCOL_FEE_ADDRESS")
	setStrSlice(&cfg.Chain.MarketplaceFeeRecipients, "CHAIN_MARKETPLACE_FEE_RECIPIENTS")

	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "S3_PREFIX")

	setInt(&cfg.Engine.MaxPricePoints, "ENGINE_MAX_PRICE_POINTS")
	setInt(&cfg.Engine.MaxTokenSetSize, "ENGINE_MAX_TOKEN_SET_SIZE")
	setInt(&cfg.Engine.BatchConcurrency, "ENGINE_BATCH_CONCURRENCY")
	setInt(&cfg.Engine.TokenConcurrency, "ENGINE_TOKEN_CONCURRENCY")
	setInt(&cfg.Engine.RecheckCooldownSeconds, "ENGINE_RECHECK_COOLDOWN_SECONDS")
	setStr(&cfg.Engine.NoticeStream, "ENGINE_NOTICE_STREAM")
	setStr(&cfg.Engine.ResultStream, "ENGINE_RESULT_STREAM")

	setStr(&cfg.Oracle.CoingeckoBaseURL, "ORACLE_COINGECKO_BASE_URL")
	setInt(&cfg.Oracle.TimeoutSeconds, "ORACLE_TIMEOUT_SECONDS")

	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setStrSlice(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
