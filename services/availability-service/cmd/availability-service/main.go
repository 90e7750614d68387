package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/libs/kafkax"
	otelx "github.com/agendly/agendly/libs/otel"
	"github.com/agendly/agendly/libs/runtime"
	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/events"
	"github.com/agendly/agendly/services/availability-service/internal/grpcserver"
	"github.com/agendly/agendly/services/availability-service/internal/handlers"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9096")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext(logger)
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

	st, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("store setup failed", "err", err)
		panic(err)
	}
	defer st.close()
	checks := []runtime.ReadyCheck{{Name: "db", Check: st.ready}}

	engine, err := availability.NewEngine(st.store, availability.SystemClock, logger, availability.Config{
		Step:            time.Duration(config.Int("SLOT_STEP_MINUTES", 15)) * time.Minute,
		Concurrency:     config.Int("ANY_STAFF_CONCURRENCY", availability.DefaultConcurrency),
		DefaultTimezone: config.String("DEFAULT_TIMEZONE", availability.DefaultTimezone),
	})
	if err != nil {
		panic(err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: brokers}, logger)
		if err != nil {
			panic(err)
		}
		publisher = kp
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("event publishing disabled (no kafka brokers configured)")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("event publisher close failed", "err", err)
		}
	}()

	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	rateLimit := httpx.NewRateLimiter(limit, time.Minute).Middleware()
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "rl:"+service)
		rateLimit = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	public := http.NewServeMux()
	handlers.NewAvailabilityHandler(engine, st.writer, publisher, logger).Register(public)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/public/", httpx.Chain(public,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
	} else {
		gs := grpcserver.New(logger, config.Duration("HEALTH_REFRESH_INTERVAL", 10*time.Second), checks...)
		go func() {
			if err := gs.Serve(ctx, lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
