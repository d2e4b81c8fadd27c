package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/accounting/mappings"
	"github.com/odyssey-erp/freightledger/internal/aging"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/assets"
	"github.com/odyssey-erp/freightledger/internal/integration"
	"github.com/odyssey-erp/freightledger/internal/observability"
	"github.com/odyssey-erp/freightledger/internal/platform/cache"
	"github.com/odyssey-erp/freightledger/internal/platform/db"
	"github.com/odyssey-erp/freightledger/internal/shared"
)

// Services groups the ledger components shared by ledgerd, the worker and ledgerctl.
type Services struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Accounts    *accounts.Service
	Mappings    *mappings.Service
	Journals    *journals.Service
	Receivables *allocation.Service
	Payables    *allocation.Service
	Aging       *aging.Service
	AgingCache  *aging.Cache
	Assets      *assets.Service
	Scheduler   *assets.Scheduler
	Hooks       *integration.Hooks
	Locker      *redislock.Client
	Metrics     *observability.Metrics
}

// Connect opens Postgres and Redis and wires the ledger services. Redis is
// optional: when it is unreachable the aging cache and run locks are disabled.
func Connect(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable; aging cache and locks disabled", slog.Any("error", err))
		redisClient = nil
	}
	svc := NewServices(pool, redisClient, cfg, logger, observability.NewMetrics())
	cleanup := func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
		pool.Close()
	}
	return svc, cleanup, nil
}

// NewServices wires the ledger components over an open pool and optional Redis client.
func NewServices(pool *pgxpool.Pool, redisClient *redis.Client, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) *Services {
	ttl := cfg.AgingCacheTTL
	agingCache := aging.NewCache(redisClient, ttl)
	var locker *redislock.Client
	if redisClient != nil {
		locker = redislock.New(redisClient)
	}

	accountService := accounts.NewService(accounts.NewRepository(pool))
	mappingService := mappings.NewService(mappings.NewRepository(pool), accountService)
	journalService := journals.NewService(journals.NewRepository(pool), shared.NewAuditLogger(pool), metrics, logger)
	receivables := allocation.NewService(allocation.Receivables, allocation.NewRepository(pool, allocation.Receivables), agingCache, metrics, logger)
	payables := allocation.NewService(allocation.Payables, allocation.NewRepository(pool, allocation.Payables), agingCache, metrics, logger)
	assetRepo := assets.NewRepository(pool)

	return &Services{
		Pool:        pool,
		Redis:       redisClient,
		Accounts:    accountService,
		Mappings:    mappingService,
		Journals:    journalService,
		Receivables: receivables,
		Payables:    payables,
		Aging:       aging.NewService(aging.NewRepository(pool), agingCache, logger),
		AgingCache:  agingCache,
		Assets:      assets.NewService(assetRepo),
		Scheduler:   assets.NewScheduler(assetRepo, journalService, locker, logger),
		Hooks:       integration.NewHooks(journalService, mappingService, agingCache, logger),
		Locker:      locker,
		Metrics:     metrics,
	}
}
