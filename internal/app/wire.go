package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/chainbook/chainbook/internal/blob/s3"
	"github.com/chainbook/chainbook/internal/cache/redis"
	"github.com/chainbook/chainbook/internal/chain"
	"github.com/chainbook/chainbook/internal/config"
	"github.com/chainbook/chainbook/internal/domain"
	"github.com/chainbook/chainbook/internal/engine"
	"github.com/chainbook/chainbook/internal/intake"
	"github.com/chainbook/chainbook/internal/pricing"
	"github.com/chainbook/chainbook/internal/protocol"
	"github.com/chainbook/chainbook/internal/protocol/collectionxyz"
	"github.com/chainbook/chainbook/internal/protocol/seaport"
	"github.com/chainbook/chainbook/internal/protocol/sudoswap"
	"github.com/chainbook/chainbook/internal/royalty"
	"github.com/chainbook/chainbook/internal/store/postgres"
	"github.com/chainbook/chainbook/internal/tokenset"
)

// Dependencies bundles every component the application needs to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	OrderStore    domain.OrderStore
	TokenSetStore domain.TokenSetStore
	PoolStore     domain.PoolStore
	RoyaltyStore  domain.RoyaltyStore
	CurrencyStore domain.CurrencyStore
	USDPriceStore domain.USDPriceStore
	SourceStore   domain.SourceStore

	// Caches and streams
	PoolCache    domain.PoolCache
	PriceCache   domain.PriceCache
	UpdateSink   domain.ResultSink
	NoticeStream *redis.NoticeStream

	// Chain access
	Chain *chain.Client

	// Engine
	Engine   *engine.Engine
	Consumer *intake.Consumer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.TokenSetStore = postgres.NewTokenSetStore(pool)
	deps.PoolStore = postgres.NewPoolStore(pool)
	deps.RoyaltyStore = postgres.NewRoyaltyStore(pool)
	deps.CurrencyStore = postgres.NewCurrencyStore(pool)
	deps.USDPriceStore = postgres.NewUSDPriceStore(pool)
	deps.SourceStore = postgres.NewSourceStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PoolCache = redis.NewPoolCache(redisClient)
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.UpdateSink = redis.NewUpdateSink(redisClient, cfg.Engine.ResultStream)
	deps.NoticeStream = redis.NewNoticeStream(redisClient, cfg.Engine.NoticeStream)

	// --- Chain RPC ---
	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain rpc: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- S3 batch archival (optional) ---
	var archiver domain.BatchArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		archiver = s3blob.NewArchiver(s3Client, cfg.S3.Prefix)
	}

	// --- Pricing ---
	oracle := pricing.NewOracle(deps.PriceCache, deps.USDPriceStore, pricing.OracleConfig{
		BaseURL:     cfg.Oracle.CoingeckoBaseURL,
		Timeout:     time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		Stablecoins: parseAddresses(cfg.Oracle.StablecoinsAt1USD),
	}, logger)
	converter := pricing.NewConverter(deps.CurrencyStore, oracle, common.HexToAddress(cfg.Chain.WrappedNative))
	sampler := pricing.NewSampler(cfg.Engine.MaxPricePoints, cfg.Engine.TokenConcurrency)

	// --- Royalties and token sets ---
	royaltyReader := chain.NewRoyaltyReader(chainClient)
	royalties := royalty.NewRegistry(deps.RoyaltyStore, royaltyReader, logger)
	sets := tokenset.NewManager(deps.TokenSetStore, cfg.Engine.MaxTokenSetSize, logger)

	// --- Adapters ---
	upserter := protocol.NewUpserter(deps.OrderStore, logger)
	cooldown := cfg.Engine.RecheckCooldown()

	collectionAdapter := collectionxyz.NewAdapter(
		chainClient,
		deps.OrderStore,
		deps.PoolStore,
		deps.PoolCache,
		sets,
		royalties,
		converter,
		sampler,
		upserter,
		deps.SourceStore,
		collectionxyz.Config{
			Factory:          common.HexToAddress(cfg.Chain.CollectionPoolFactory),
			TokenConcurrency: cfg.Engine.TokenConcurrency,
			Cooldown:         cooldown,
		},
		logger,
	)

	sweepAdapter := sudoswap.NewAdapter(
		chainClient,
		deps.PoolStore,
		deps.PoolCache,
		sets,
		royalties,
		sampler,
		upserter,
		deps.SourceStore,
		sudoswap.Config{
			ProtocolFeeRecipient: common.HexToAddress(cfg.Chain.SweepProtocolFeeAddress),
			TokenConcurrency:     cfg.Engine.TokenConcurrency,
			Cooldown:             cooldown,
		},
		logger,
	)

	seaportAdapter := seaport.NewAdapter(
		sets,
		royalties,
		converter,
		upserter,
		deps.SourceStore,
		nil,
		royalty.NewClassifyPolicy(parseAddresses(cfg.Chain.MarketplaceFeeRecipients)),
		seaport.Config{Cooldown: cooldown},
		logger,
	)

	// --- Engine and intake ---
	deps.Engine = engine.New(
		deps.OrderStore,
		deps.UpdateSink,
		archiver,
		engine.Config{BatchConcurrency: cfg.Engine.BatchConcurrency},
		logger,
		collectionAdapter,
		sweepAdapter,
		seaportAdapter,
	)

	deps.Consumer = intake.NewConsumer(deps.NoticeStream, deps.Engine, intake.Config{
		BatchSize:    cfg.Engine.IntakeBatchSize,
		BlockTimeout: time.Duration(cfg.Engine.IntakeBlockMS) * time.Millisecond,
	}, logger)

	return deps, cleanup, nil
}

// parseAddresses converts hex address strings to their canonical form.
func parseAddresses(raw []string) []common.Address {
	addrs := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		addrs = append(addrs, common.HexToAddress(s))
	}
	return addrs
}
