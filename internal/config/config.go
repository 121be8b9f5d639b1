// Package config 负责从环境变量（以及可选的 .env 文件）加载应用配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Log       LogConfig
	Redis     RedisConfig
	Cache     CacheConfig
	JWT       JWTConfig
	Admin     AdminConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	MQ        MQConfig
	Catalog   CatalogConfig
}

// AppConfig 服务基础配置
type AppConfig struct {
	Env             string // dev / test / prod
	Name            string
	Version         string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string // debug / info / warn / error
	Encoding   string // json / console
	File       string // 为空时只输出到标准错误
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr 返回 host:port 形式的地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig 缓存配置，用于幂等响应存储
type CacheConfig struct {
	Enabled bool
	Type    string // memory / redis
	TTL     time.Duration
}

// JWTConfig 令牌配置
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AdminConfig 管理员账号
// PasswordHash 为 bcrypt 哈希；仅在非生产环境允许使用明文 Password。
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RateLimitConfig 下单限流配置（令牌桶）
type RateLimitConfig struct {
	Enabled bool
	Backend string // redis / local
	Rate    int64
	Burst   int64
	Window  time.Duration
}

// MQConfig 订单事件发布配置
type MQConfig struct {
	Enabled        bool
	Host           string
	Port           int
	Username       string
	Password       string
	VHost          string
	UseTLS         bool
	Exchange       string
	PublishTimeout time.Duration
}

// CatalogConfig 商品目录配置
type CatalogConfig struct {
	File string // 为空时使用内置默认目录
}

// Load 加载 .env 文件（如存在）和环境变量，并校验配置
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	r := &reader{}
	cfg := &Config{
		App: AppConfig{
			Env:             r.getString("APP_ENV", "dev"),
			Name:            r.getString("APP_NAME", "catalog-shop"),
			Version:         r.getString("APP_VERSION", "0.1.0"),
			Port:            r.getInt("APP_PORT", 8080),
			RequestTimeout:  r.getDuration("APP_REQUEST_TIMEOUT", 5*time.Second),
			ShutdownTimeout: r.getDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:      r.getString("LOG_LEVEL", "info"),
			Encoding:   r.getString("LOG_ENCODING", "json"),
			File:       r.getString("LOG_FILE", ""),
			MaxSizeMB:  r.getInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: r.getInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: r.getInt("LOG_MAX_AGE_DAYS", 7),
		},
		Redis: RedisConfig{
			Host:     r.getString("REDIS_HOST", "localhost"),
			Port:     r.getInt("REDIS_PORT", 6379),
			Password: r.getString("REDIS_PASSWORD", ""),
			DB:       r.getInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: r.getBool("CACHE_ENABLED", true),
			Type:    r.getString("CACHE_TYPE", "memory"),
			TTL:     r.getDuration("CACHE_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:          r.getString("JWT_SECRET", ""),
			AccessTokenTTL:  r.getDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: r.getDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Admin: AdminConfig{
			Username:     r.getString("ADMIN_USERNAME", "admin"),
			Password:     r.getString("ADMIN_PASSWORD", ""),
			PasswordHash: r.getString("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: r.getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: r.getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: r.getList("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID", "X-Idempotency-Key"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: r.getBool("RATE_LIMIT_ENABLED", true),
			Backend: r.getString("RATE_LIMIT_BACKEND", "local"),
			Rate:    r.getInt64("RATE_LIMIT_RATE", 10),
			Burst:   r.getInt64("RATE_LIMIT_BURST", 20),
			Window:  r.getDuration("RATE_LIMIT_WINDOW", time.Second),
		},
		MQ: MQConfig{
			Enabled:        r.getBool("MQ_ENABLED", false),
			Host:           r.getString("MQ_HOST", "localhost"),
			Port:           r.getInt("MQ_PORT", 5672),
			Username:       r.getString("MQ_USERNAME", "guest"),
			Password:       r.getString("MQ_PASSWORD", "guest"),
			VHost:          r.getString("MQ_VHOST", "/"),
			UseTLS:         r.getBool("MQ_USE_TLS", false),
			Exchange:       r.getString("MQ_EXCHANGE", "catalog.orders"),
			PublishTimeout: r.getDuration("MQ_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Catalog: CatalogConfig{
			File: r.getString("CATALOG_FILE", ""),
		},
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}

	// 非生产环境未配置密钥和管理员密码时使用固定值，生产环境由 Validate 拦截
	if cfg.App.Env != "prod" {
		if cfg.JWT.Secret == "" {
			cfg.JWT.Secret = "dev-secret-change-me"
		}
		if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
			cfg.Admin.Password = "admin"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(c.App.Env, "dev", "test", "prod"), "APP_ENV must be dev, test or prod, got %q", c.App.Env)
	check(c.App.Port > 0 && c.App.Port <= 65535, "APP_PORT must be between 1 and 65535, got %d", c.App.Port)
	check(c.App.RequestTimeout > 0, "APP_REQUEST_TIMEOUT must be positive")
	check(c.App.ShutdownTimeout > 0, "APP_SHUTDOWN_TIMEOUT must be positive")

	check(oneOf(c.Log.Level, "debug", "info", "warn", "error"), "LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	check(oneOf(c.Log.Encoding, "json", "console"), "LOG_ENCODING must be json or console, got %q", c.Log.Encoding)

	if c.Cache.Enabled {
		check(oneOf(c.Cache.Type, "memory", "redis"), "CACHE_TYPE must be memory or redis, got %q", c.Cache.Type)
		check(c.Cache.TTL > 0, "CACHE_TTL must be positive")
	}

	check(c.JWT.Secret != "", "JWT_SECRET is required")
	check(c.JWT.AccessTokenTTL > 0, "JWT_ACCESS_TOKEN_TTL must be positive")
	check(c.JWT.RefreshTokenTTL > c.JWT.AccessTokenTTL, "JWT_REFRESH_TOKEN_TTL must be longer than access token TTL")

	check(strings.TrimSpace(c.Admin.Username) != "", "ADMIN_USERNAME is required")
	if c.App.Env == "prod" {
		check(c.Admin.PasswordHash != "", "ADMIN_PASSWORD_HASH is required in prod")
	} else {
		check(c.Admin.PasswordHash != "" || c.Admin.Password != "", "ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	if c.RateLimit.Enabled {
		check(oneOf(c.RateLimit.Backend, "local", "redis"), "RATE_LIMIT_BACKEND must be local or redis, got %q", c.RateLimit.Backend)
		check(c.RateLimit.Rate > 0, "RATE_LIMIT_RATE must be positive")
		check(c.RateLimit.Burst > 0, "RATE_LIMIT_BURST must be positive")
		check(c.RateLimit.Window >= time.Second, "RATE_LIMIT_WINDOW must be at least 1s")
	}

	if c.MQ.Enabled {
		check(c.MQ.Host != "", "MQ_HOST is required when MQ is enabled")
		check(c.MQ.Port > 0 && c.MQ.Port <= 65535, "MQ_PORT must be between 1 and 65535")
		check(c.MQ.Exchange != "", "MQ_EXCHANGE is required when MQ is enabled")
		check(c.MQ.PublishTimeout > 0, "MQ_PUBLISH_TIMEOUT must be positive")
	}

	return errors.Join(errs...)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// reader 读取环境变量并累积类型转换错误
type reader struct {
	errs []error
}

func (r *reader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *reader) getString(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *reader) getInt(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) getInt64(key string, def int64) int64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) getBool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *reader) getDuration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *reader) getList(key string, def []string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
