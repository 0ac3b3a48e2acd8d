package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thoas/go-funk"
)

type Config struct {
	Env  string // local, dev, prod
	Port string

	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	UploadDir      string
	UploadMaxBytes int64

	// 以下为可选基础设施，留空即不启用
	RedisURL     string
	PresenceTTL  time.Duration
	NatsURL      string
	OtelEndpoint string

	SeedDemo bool

	LoginMaxAttempts int
	LoginWindow      time.Duration
}

const defaultJWTSecret = "krafink-dev-secret-change-me"

// Load 从环境变量读取配置，缺省值适用于本地开发
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("APP_ENV", "local"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=krafink port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:        getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:           getEnvDuration("JWT_TTL", 7*24*time.Hour),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		UploadMaxBytes:   int64(getEnvInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
		RedisURL:         getEnv("REDIS_URL", ""),
		PresenceTTL:      getEnvDuration("PRESENCE_TTL", 30*time.Second),
		NatsURL:          getEnv("NATS_URL", ""),
		OtelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SeedDemo:         getEnvBool("SEED_DEMO", false),
		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 10),
		LoginWindow:      getEnvDuration("LOGIN_WINDOW", 15*time.Minute),
	}

	if cfg.Env == "prod" && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	// 凭据模式下不能配合通配来源，否则任意站点都能带 cookie 调用
	if cfg.Env == "prod" && !cfg.ExplicitOrigins() {
		return nil, fmt.Errorf("CORS_ORIGINS must list explicit origins in production")
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive")
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// ExplicitOrigins 未使用通配 * 时才允许跨域携带凭据
func (c *Config) ExplicitOrigins() bool {
	return len(c.CORSOrigins) > 0 && !funk.ContainsString(c.CORSOrigins, "*")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
