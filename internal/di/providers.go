package di

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/app"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/config"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/database"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/handler"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/middleware"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/router"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/observability"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/security"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger)

var RuntimeInfraSet = wire.NewSet(
	provideOpenDB,
	provideRedisClient,
	provideFeatureFlagCacheStore,
	provideImageResolver,
	provideAdminWriteLimiter,
)

var RepositorySet = wire.NewSet(
	repository.NewFeatureFlagRepository,
	repository.NewUserRepository,
)

var SecuritySet = wire.NewSet(provideJWTManager)

var ServiceSet = wire.NewSet(
	provideFeatureFlagService,
	service.NewEarlyAccessService,
)

var HTTPSet = wire.NewSet(
	handler.NewFeatureFlagHandler,
	handler.NewEarlyAccessHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// provideRedisClient returns nil when no Redis-backed component is enabled.
func provideRedisClient(cfg *config.Config) (redis.UniversalClient, func()) {
	if !cfg.FeatureFlagCacheRedisEnabled && !cfg.RateLimitRedisEnabled {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }
}

func provideFeatureFlagCacheStore(cfg *config.Config, client redis.UniversalClient) service.FeatureFlagEvaluationCacheStore {
	switch {
	case !cfg.FeatureFlagCacheEnabled:
		return service.NewNoopFeatureFlagEvaluationCacheStore()
	case cfg.FeatureFlagCacheRedisEnabled && client != nil:
		return service.NewRedisFeatureFlagEvaluationCacheStore(client, cfg.RedisKeyPrefix)
	default:
		return service.NewInMemoryFeatureFlagEvaluationCacheStore()
	}
}

func provideImageResolver(cfg *config.Config) (service.ProfileImageResolver, error) {
	if !cfg.StorageEnabled {
		return service.NewPassthroughImageResolver(), nil
	}
	resolver, err := service.NewMinIOImageResolver(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		return nil, fmt.Errorf("create image resolver: %w", err)
	}
	return resolver, nil
}

func provideAdminWriteLimiter(cfg *config.Config, client redis.UniversalClient, jwtMgr *security.JWTManager) *middleware.RateLimiter {
	limiter := middleware.NewLocalFixedWindowLimiter()
	mode := middleware.FailClosed
	if cfg.RateLimitRedisEnabled && client != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(client, cfg.RedisKeyPrefix+":rl")
		mode = middleware.FailOpen
	}
	return middleware.NewDistributedRateLimiterWithKey(
		limiter,
		cfg.AdminWriteRateLimitPerMin,
		time.Minute,
		mode,
		"admin_write",
		middleware.SubjectOrIPKeyFunc(jwtMgr),
	)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideFeatureFlagService(
	cfg *config.Config,
	flags repository.FeatureFlagRepository,
	users repository.UserRepository,
	cache service.FeatureFlagEvaluationCacheStore,
	images service.ProfileImageResolver,
	logger *slog.Logger,
) service.FeatureFlagService {
	ttl := time.Duration(0)
	if cfg.FeatureFlagCacheEnabled {
		ttl = cfg.FeatureFlagCacheTTL
	}
	return service.NewFeatureFlagService(flags, users, service.FeatureFlagServiceOptions{
		Cache:            cache,
		CacheTTL:         ttl,
		MaxTargetedUsers: cfg.FeatureFlagMaxTargetedUsers,
		Images:           images,
		Logger:           logger,
	})
}

func provideRouterDependencies(
	flagHandler *handler.FeatureFlagHandler,
	earlyAccessHandler *handler.EarlyAccessHandler,
	flags service.FeatureFlagService,
	earlyAccess service.EarlyAccessService,
	users repository.UserRepository,
	jwtMgr *security.JWTManager,
	adminWriteLimiter *middleware.RateLimiter,
	logger *slog.Logger,
) router.Dependencies {
	return router.Dependencies{
		FeatureFlagHandler: flagHandler,
		EarlyAccessHandler: earlyAccessHandler,
		FeatureFlags:       flags,
		EarlyAccess:        earlyAccess,
		Users:              users,
		JWTManager:         jwtMgr,
		AdminWriteLimiter:  adminWriteLimiter,
		Logger:             logger,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type MigrationRunner struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMigrationRunner(db *gorm.DB, logger *slog.Logger) *MigrationRunner {
	return &MigrationRunner{db: db, logger: logger}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}
