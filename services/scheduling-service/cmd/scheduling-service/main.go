package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotkeeper/libs/auth"
	"github.com/md-rashed-zaman/slotkeeper/libs/config"
	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotkeeper/libs/otel"
	"github.com/md-rashed-zaman/slotkeeper/libs/runtime"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/memstore"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/storage"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadDotEnv(".env")

	cfg, err := loadSettings()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		return err
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedMetrics := metrics.New(reg)

	var checks []runtime.ReadyCheck

	var store booking.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		store = memstore.New()
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return err
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		store = storage.New(pool, outboxRepo, cfg.Location)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPoll,
			BatchSize: cfg.OutboxBatch,
			OnPublish: schedMetrics.ObserveOutboxPublished,
		})
		go publisher.Run(ctx)
		if cfg.KafkaBrokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		}
	}

	var (
		slotCache booking.SlotCache
		limiter   httpx.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		cache := slotcache.New(rdb, cfg.SlotCacheTTL, "slotkeeper:slots")
		slotCache = cache
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.Ping})

		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "slotkeeper:rl")
		logger.Info("redis enabled", "addr", cfg.RedisAddr, "rate_limit_per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	svc := booking.NewService(store, logger, booking.Config{
		SlotDuration: cfg.SlotDuration,
		Location:     cfg.Location,
		Cache:        slotCache,
		Metrics:      schedMetrics,
	})

	identity := handlers.HeaderIdentity()
	if cfg.AuthMode == "jwt" {
		verifier := auth.Verifier{Secret: cfg.JWTSecret}
		if cfg.JWKSURL != "" {
			verifier.JWKS = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSTTL, &http.Client{Timeout: 5 * time.Second})
		}
		identity = handlers.JWTIdentity(verifier)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.WithAccessLog(logger))
	r.Use(middleware.Recoverer)
	runtime.MountHealth(r, checks...)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(httpx.RateLimit(limiter, httpx.ClientAddr, logger, cfg.RateLimitFailOpen), httpx.WithBodyLimit(cfg.BodyLimit), httpx.WithTimeout(cfg.RequestTimeout))
		handlers.NewSchedulingHandler(svc, logger, identity).Routes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "scheduling"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("scheduling service configured",
		"store", cfg.StoreDriver,
		"auth_mode", cfg.AuthMode,
		"slot_minutes", int(cfg.SlotDuration/time.Minute),
		"timezone", cfg.Location.String(),
	)
	return runtime.Serve(ctx, srv, logger, 10*time.Second)
}
