package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pnwatin/auth-server/internal/clock"
	"github.com/pnwatin/auth-server/internal/config"
	"github.com/pnwatin/auth-server/internal/events"
	"github.com/pnwatin/auth-server/internal/httpapi"
	"github.com/pnwatin/auth-server/internal/ports"
	"github.com/pnwatin/auth-server/internal/repository"
	"github.com/pnwatin/auth-server/internal/security"
	"github.com/pnwatin/auth-server/internal/service"
)

func main() {
	// 1. Config
	cfg, err := config.Load("config")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger: slog JSON outside local, text locally.
	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "local"
	}
	initLogger(env)
	slog.Info("starting authserver", "env", env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing.
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Database.
	dbConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		slog.Error("unable to parse db config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// 5. Event broker (best-effort: a down NATS must not stop the service).
	// publisher stays a nil ports.EventPublisher (not a typed-nil *events.Broker)
	// when the connection fails, so service.New's nil check works correctly.
	var publisher ports.EventPublisher
	if broker, err := events.NewBroker(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, audit events disabled", "error", err)
	} else {
		publisher = broker
		slog.Info("nats jetstream connected")
	}

	// 6. Security.
	hashPool := security.NewHashPool(0)
	hasher, err := security.NewArgon2Hasher(security.DefaultArgon2Params, hashPool)
	if err != nil {
		slog.Error("failed to init password hasher", "error", err)
		os.Exit(1)
	}

	codec, err := security.NewJWTCodec(
		[]byte(cfg.JWT.Secret),
		time.Duration(cfg.JWT.AccessTokenExpSeconds)*time.Second,
		time.Duration(cfg.JWT.RefreshTokenExpSeconds)*time.Second,
		0,
	)
	if err != nil {
		slog.Error("failed to init jwt codec", "error", err)
		os.Exit(1)
	}

	// 7. Wiring.
	store := repository.New(dbPool)
	authCore := service.New(store, hasher, codec, clock.Real{}, publisher, slog.Default())

	addr := cfg.Application.Addr()
	srv := httpapi.NewServer(addr, authCore, slog.Default(), dbPool.Ping)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}
	slog.Info("authserver listening", "address", ln.Addr())

	// 8. Serve + graceful shutdown.
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.Serve(ctx, ln)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("signal received, shutting down", "signal", sig)
		cancel()
		if err := <-serveErrCh; err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("authserver stopped")
}

func initLogger(env string) {
	var handler slog.Handler
	if env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Otel.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("authserver"),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
