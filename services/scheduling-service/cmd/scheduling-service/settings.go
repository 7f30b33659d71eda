package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/libs/config"
	"github.com/md-rashed-zaman/slotkeeper/libs/db"
)

type settings struct {
	Service        string
	Port           string
	StoreDriver    string
	DatabaseURL    string
	Pool           db.PoolConfig
	SlotDuration   time.Duration
	Location       *time.Location
	BodyLimit      int64
	RequestTimeout time.Duration

	AuthMode  string
	JWTSecret string
	JWKSURL   string
	JWKSTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SlotCacheTTL  time.Duration

	RateLimitPerMinute int
	RateLimitFailOpen  bool

	KafkaBrokers string
	OutboxPoll   time.Duration
	OutboxBatch  int
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.Service = config.String("SERVICE_NAME", "scheduling-service")
	if s.Port, err = config.Port("PORT", "8080"); err != nil {
		return s, err
	}

	s.StoreDriver = strings.ToLower(config.String("STORE_DRIVER", "postgres"))
	switch s.StoreDriver {
	case "postgres":
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
		if s.Pool, err = poolSettings(s.Service); err != nil {
			return s, err
		}
	case "memory":
	default:
		return s, fmt.Errorf("STORE_DRIVER must be postgres or memory (got %q)", s.StoreDriver)
	}

	minutes, err := config.PositiveInt("SLOT_DURATION_MINUTES", 30)
	if err != nil {
		return s, err
	}
	s.SlotDuration = time.Duration(minutes) * time.Minute
	if s.Location, err = config.Location("TIMEZONE", "UTC"); err != nil {
		return s, err
	}

	bodyLimit, err := config.PositiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return s, err
	}
	s.BodyLimit = int64(bodyLimit)
	timeoutSeconds, err := config.PositiveInt("REQUEST_TIMEOUT_SECONDS", 10)
	if err != nil {
		return s, err
	}
	s.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	s.AuthMode = strings.ToLower(config.String("AUTH_MODE", "headers"))
	s.JWTSecret = config.String("JWT_SECRET", "")
	s.JWKSURL = config.String("JWKS_URL", "")
	jwksSeconds, err := config.PositiveInt("JWKS_CACHE_SECONDS", 300)
	if err != nil {
		return s, err
	}
	s.JWKSTTL = time.Duration(jwksSeconds) * time.Second
	switch s.AuthMode {
	case "headers":
	case "jwt":
		if s.JWTSecret == "" && s.JWKSURL == "" {
			return s, errors.New("AUTH_MODE=jwt needs JWT_SECRET or JWKS_URL")
		}
	default:
		return s, fmt.Errorf("AUTH_MODE must be headers or jwt (got %q)", s.AuthMode)
	}

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	if s.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return s, err
	}
	cacheSeconds, err := config.PositiveInt("SLOT_CACHE_TTL_SECONDS", 60)
	if err != nil {
		return s, err
	}
	s.SlotCacheTTL = time.Duration(cacheSeconds) * time.Second

	if s.RateLimitPerMinute, err = config.PositiveInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	s.RateLimitFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	pollMS, err := config.PositiveInt("OUTBOX_POLL_MS", 2000)
	if err != nil {
		return s, err
	}
	s.OutboxPoll = time.Duration(pollMS) * time.Millisecond
	if s.OutboxBatch, err = config.PositiveInt("OUTBOX_BATCH_SIZE", 50); err != nil {
		return s, err
	}
	return s, nil
}

func poolSettings(service string) (db.PoolConfig, error) {
	pc := db.PoolConfig{ApplicationName: service}
	maxConns, err := config.PositiveInt("DB_MAX_CONNS", 10)
	if err != nil {
		return pc, err
	}
	pc.MaxConns = int32(maxConns)
	if pc.MaxConnLifetime, err = config.Duration("DB_MAX_CONN_LIFETIME", 30*time.Minute); err != nil {
		return pc, err
	}
	if pc.ConnectAttempts, err = config.PositiveInt("DB_CONNECT_ATTEMPTS", 5); err != nil {
		return pc, err
	}
	pc.ConnectBackoff = 500 * time.Millisecond
	return pc, nil
}
