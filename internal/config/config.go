package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultMaxTargetedUsers = 1000

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseDriver string
	DatabaseURL    string

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string

	FeatureFlagCacheEnabled      bool
	FeatureFlagCacheTTL          time.Duration
	FeatureFlagCacheRedisEnabled bool
	FeatureFlagMaxTargetedUsers  int

	AdminWriteRateLimitPerMin int
	RateLimitRedisEnabled     bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	OTELServiceName string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                          getEnv("APP_ENV", "development"),
		HTTPPort:                     getEnv("HTTP_PORT", "8080"),
		LogLevel:                     getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:               strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:                  os.Getenv("DATABASE_URL"),
		JWTIssuer:                    getEnv("JWT_ISSUER", "course-platform"),
		JWTAudience:                  getEnv("JWT_AUDIENCE", "course-platform-api"),
		JWTAccessSecret:              os.Getenv("JWT_ACCESS_SECRET"),
		FeatureFlagCacheEnabled:      getEnvBool("FEATURE_FLAG_CACHE_ENABLED", false),
		FeatureFlagCacheRedisEnabled: getEnvBool("FEATURE_FLAG_CACHE_REDIS_ENABLED", false),
		FeatureFlagMaxTargetedUsers:  getEnvInt("FEATURE_FLAG_MAX_TARGETED_USERS", DefaultMaxTargetedUsers),
		AdminWriteRateLimitPerMin:    getEnvInt("ADMIN_WRITE_RATE_LIMIT_PER_MIN", 30),
		RateLimitRedisEnabled:        getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RedisAddr:                    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:                os.Getenv("REDIS_PASSWORD"),
		RedisDB:                      getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:               getEnv("REDIS_KEY_PREFIX", "feature_flag_eval_cache"),
		StorageEnabled:               getEnvBool("STORAGE_ENABLED", false),
		StorageEndpoint:              os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey:             os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:             os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:                getEnv("STORAGE_BUCKET", "profile-images"),
		StorageUseSSL:                getEnvBool("STORAGE_USE_SSL", true),
		OTELServiceName:              getEnv("OTEL_SERVICE_NAME", "feature-flags"),
	}

	cacheTTL, err := time.ParseDuration(getEnv("FEATURE_FLAG_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("parse FEATURE_FLAG_CACHE_TTL: %w", err)
	}
	cfg.FeatureFlagCacheTTL = cacheTTL

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		errs = append(errs, "DATABASE_DRIVER must be postgres or sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if c.FeatureFlagCacheEnabled && (c.FeatureFlagCacheTTL <= 0 || c.FeatureFlagCacheTTL > time.Hour) {
		errs = append(errs, "FEATURE_FLAG_CACHE_TTL must be between 1s and 1h")
	}
	if c.FeatureFlagCacheRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when FEATURE_FLAG_CACHE_REDIS_ENABLED is set")
	}
	if c.AdminWriteRateLimitPerMin <= 0 {
		errs = append(errs, "ADMIN_WRITE_RATE_LIMIT_PER_MIN must be positive")
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED is set")
	}
	if c.FeatureFlagMaxTargetedUsers <= 0 || c.FeatureFlagMaxTargetedUsers > 10000 {
		errs = append(errs, "FEATURE_FLAG_MAX_TARGETED_USERS must be between 1 and 10000")
	}
	if c.StorageEnabled {
		if c.StorageEndpoint == "" {
			errs = append(errs, "STORAGE_ENDPOINT is required when STORAGE_ENABLED is set")
		}
		if c.StorageAccessKey == "" || c.StorageSecretKey == "" {
			errs = append(errs, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENABLED is set")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
