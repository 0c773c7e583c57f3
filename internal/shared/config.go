package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	Store        string // mysql | memory
	MySQLDSN     string
	StoreTimeout time.Duration

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	LockBackend string // local | redis
	LockTTL     time.Duration

	BookingMaxRetries  int
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	JWTSecret    string
	AMQPURL      string
	CORSOrigins  []string
	RateLimitRPM int

	CatalogBase string
	CatalogKey  string
	CatalogRPS  int
	SeedWorkers int
}

func Load() Config {
	// .env is optional; real environment wins.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		Store:        strings.ToLower(env("STORE", "mysql")),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayfinder?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		StoreTimeout: time.Duration(atoi("STORE_TIMEOUT_MS", 3000)) * time.Millisecond,

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		LockBackend: strings.ToLower(env("LOCK_BACKEND", "local")),
		LockTTL:     time.Duration(atoi("LOCK_TTL_MS", 10000)) * time.Millisecond,

		BookingMaxRetries:  atoi("BOOKING_MAX_RETRIES", 3),
		BreakerFailures:    atoi("BREAKER_FAILURES", 5),
		BreakerOpenTimeout: time.Duration(atoi("BREAKER_OPEN_SECONDS", 30)) * time.Second,

		JWTSecret:    env("JWT_SECRET", ""),
		AMQPURL:      env("AMQP_URL", ""),
		CORSOrigins:  splitList(env("CORS_ORIGINS", "http://localhost:3000")),
		RateLimitRPM: atoi("RATE_LIMIT_RPM", 600),

		CatalogBase: env("CATALOG_BASE_URL", ""),
		CatalogKey:  env("CATALOG_API_KEY", ""),
		CatalogRPS:  atoi("CATALOG_RPS", 5),
		SeedWorkers: atoi("SEED_WORKERS", 8),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; requester identity falls back to X-User-ID")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
