package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"phonelease/internal/admin"
	"phonelease/internal/events"
	jwttoken "phonelease/internal/jwt_token"
	"phonelease/internal/payments"
	"phonelease/internal/platform/config"
	"phonelease/internal/platform/httpserver"
	"phonelease/internal/platform/kafka"
	"phonelease/internal/platform/logger"
	"phonelease/internal/platform/metrics"
	"phonelease/internal/platform/postgres"
	"phonelease/internal/platform/redis"
	pricinghandler "phonelease/internal/pricing/handler"
	pricingmetrics "phonelease/internal/pricing/metrics"
	pricingmodels "phonelease/internal/pricing/models"
	pricingservice "phonelease/internal/pricing/service"
	pricingstore "phonelease/internal/pricing/store"
	ratemetrics "phonelease/internal/ratelimit/metrics"
	ratelimit "phonelease/internal/ratelimit/middleware"
	ratemodels "phonelease/internal/ratelimit/models"
	ratestore "phonelease/internal/ratelimit/store"
	leasehandler "phonelease/internal/registration/handler"
	leasemetrics "phonelease/internal/registration/metrics"
	leaseservice "phonelease/internal/registration/service"
	leasestore "phonelease/internal/registration/store"
	resolutionhandler "phonelease/internal/resolution/handler"
	resolutionmetrics "phonelease/internal/resolution/metrics"
	resolutionservice "phonelease/internal/resolution/service"
	httptransport "phonelease/internal/transport/http"
	"phonelease/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	m := metrics.New()
	health := map[string]httptransport.HealthCheck{}

	sinks := []events.Sink{events.NewLogSink(log)}
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		if err := kc.EnsureTopic(ctx, 1, 1); err != nil {
			return err
		}
		buffer := events.NewAsyncSink(cfg.Kafka.BufferSize, events.WithDropCounter(events.NewDropCounter(m.Registry)))
		worker := events.NewWorker(buffer, events.NewKafkaSink(kc, kc.Topic), log)
		g.Go(func() error { return worker.Run(ctx) })
		sinks = append(sinks, buffer)
		health["kafka"] = kc.Ping
		log.Info("kafka event publisher enabled", "topic", kc.Topic)
	}
	publisher := events.NewPublisher(sinks, events.WithLogger(log))

	ownerID, err := domain.ParseIdentity(cfg.Server.Owner)
	if err != nil {
		return fmt.Errorf("REGISTRY_OWNER: %w", err)
	}
	owner, err := admin.New(ownerID, admin.WithLogger(log), admin.WithPublisher(publisher))
	if err != nil {
		return err
	}

	priceStore, leases, err := openStores(ctx, cfg, log, health)
	if err != nil {
		return err
	}

	engine, err := pricingservice.New(priceStore, owner,
		pricingmodels.Bounds{Min: cfg.Pricing.MinPeriod, Max: cfg.Pricing.MaxPeriod},
		pricingservice.WithLogger(log),
		pricingservice.WithPublisher(publisher),
		pricingservice.WithMetrics(pricingmetrics.New(m.Registry)),
	)
	if err != nil {
		return err
	}

	gateway, err := newGateway(cfg.Resolver, owner, leases, log, publisher, m)
	if err != nil {
		return err
	}

	var treasury leaseservice.Treasury = payments.NewInMemoryTreasury()
	if cfg.Treasury.URL != "" {
		treasury = payments.NewHTTPTreasury(cfg.Treasury.URL, cfg.Treasury.Timeout)
	}
	wallet := payments.NewWallet()
	ledger, err := leaseservice.New(leases, engine, treasury, wallet, owner,
		leaseservice.WithLogger(log),
		leaseservice.WithPublisher(publisher),
		leaseservice.WithMetrics(leasemetrics.New(m.Registry)),
		leaseservice.WithAddressBinder(gateway),
	)
	if err != nil {
		return err
	}
	leases.SetCallback(ledger)

	limiter, err := newLimiter(ctx, cfg, log, m, health)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  m,
		Tokens:   jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience),
		Owner:    owner,
		Limiter:  limiter,
		Admin:    admin.NewHandler(owner, log),
		Pricing:  pricinghandler.New(engine, log),
		Leases:   leasehandler.New(ledger, log),
		Resolver: resolutionhandler.New(gateway, log),
		Wallet:   payments.NewHandler(wallet, log),
		Health:   health,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g.Go(func() error {
		log.Info("starting phonelease registry", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type leaseStore interface {
	leaseservice.LeaseStore
	resolutionservice.LeaseAuthority
	SetCallback(cb leasestore.Callback)
}

// openStores uses Postgres when DATABASE_URL is set, otherwise in-memory stores.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger, health map[string]httptransport.HealthCheck) (pricingservice.Store, leaseStore, error) {
	if cfg.Database.URL == "" {
		log.Info("using in-memory stores")
		return pricingstore.NewInMemory(cfg.Pricing.BasePrice), leasestore.NewInMemory(), nil
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	health["postgres"] = db.PingContext
	if err := migrate(ctx, db); err != nil {
		return nil, nil, err
	}
	prices := pricingstore.NewPostgres(db)
	if err := prices.Seed(ctx, cfg.Pricing.BasePrice); err != nil {
		return nil, nil, fmt.Errorf("seed pricing: %w", err)
	}
	log.Info("using postgres stores")
	return prices, leasestore.NewPostgres(db, leasestore.WithTxTimeout(cfg.Database.TxTimeout)), nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if err := pricingstore.ApplySchema(ctx, db); err != nil {
		return fmt.Errorf("apply pricing schema: %w", err)
	}
	if err := leasestore.ApplySchema(ctx, db); err != nil {
		return fmt.Errorf("apply lease schema: %w", err)
	}
	return nil
}

func newGateway(cfg config.Resolver, owner *admin.Ownable, leases resolutionservice.LeaseAuthority, log *slog.Logger, publisher *events.Publisher, m *metrics.Metrics) (*resolutionservice.Gateway, error) {
	target, err := domain.ParseIdentity(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("RESOLVER_TARGET: %w", err)
	}
	signer, err := domain.ParseIdentity(cfg.Signer)
	if err != nil {
		return nil, fmt.Errorf("RESOLVER_SIGNER: %w", err)
	}
	return resolutionservice.New(resolutionservice.Config{
		Target:     target,
		Signer:     signer,
		GatewayURL: cfg.GatewayURL,
	}, owner, leases,
		resolutionservice.WithLogger(log),
		resolutionservice.WithPublisher(publisher),
		resolutionservice.WithMetrics(resolutionmetrics.New(m.Registry)),
	)
}

// newLimiter shares the budget through Redis when REDIS_URL is set.
func newLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics, health map[string]httptransport.HealthCheck) (*ratelimit.Limiter, error) {
	var store ratelimit.Store = ratestore.NewInMemory()
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client != nil {
		store = ratestore.NewRedis(client.Client, "")
		health["redis"] = client.Health
		log.Info("using redis rate limit store")
	}
	policy := ratemodels.Policy{Limit: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
	return ratelimit.New(store, policy, log, ratelimit.WithMetrics(ratemetrics.New(m.Registry))), nil
}
