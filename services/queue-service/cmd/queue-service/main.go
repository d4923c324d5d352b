package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/waitlinehq/waitline/libs/config"
	"github.com/waitlinehq/waitline/libs/db"
	"github.com/waitlinehq/waitline/libs/httpx"
	"github.com/waitlinehq/waitline/libs/kafkax"
	otelx "github.com/waitlinehq/waitline/libs/otel"
	"github.com/waitlinehq/waitline/libs/runtime"
	"github.com/waitlinehq/waitline/services/queue-service/internal/directory"
	"github.com/waitlinehq/waitline/services/queue-service/internal/favorites"
	"github.com/waitlinehq/waitline/services/queue-service/internal/handlers"
	"github.com/waitlinehq/waitline/services/queue-service/internal/outbox"
	"github.com/waitlinehq/waitline/services/queue-service/internal/queue"
	"github.com/waitlinehq/waitline/services/queue-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "queue-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewQueueRepository(pool)
	dir := directory.NewPostgres(pool)
	engine := queue.NewEngine(repo, dir)

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	joinLimit := config.Int("JOIN_RATE_LIMIT_PER_MINUTE", 30)

	var rdb *redis.Client
	var favoritesStore *favorites.Store
	var joinLimiter httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		favoritesStore = favorites.NewStore(rdb, 0)
		joinLimiter = httpx.NewRedisRateLimiter(rdb, joinLimit, time.Minute, "queue-join").Middleware(logger, true)
	} else {
		logger.Warn("redis not configured; using in-memory rate limiting, favorites disabled")
		joinLimiter = httpx.NewRateLimiter(joinLimit, time.Minute).Middleware()
	}

	queueHandler := handlers.NewQueueHandler(engine, pool, outboxRepo, favoritesStore, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/public/queue/join", joinLimiter(http.HandlerFunc(queueHandler.Join)))
	mux.HandleFunc("/api/v1/public/queue/cancel", queueHandler.Cancel)
	mux.HandleFunc("/api/v1/public/queue/position", queueHandler.Position)
	mux.HandleFunc("/api/v1/public/slots", queueHandler.Slots)
	mux.HandleFunc("/api/v1/public/favorites", queueHandler.Favorites)
	mux.HandleFunc("/api/v1/queue", queueHandler.List)
	mux.HandleFunc("/api/v1/queue/transition", queueHandler.Transition)

	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(10*time.Second),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "queue")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
