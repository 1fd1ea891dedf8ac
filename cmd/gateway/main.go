package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	jwttoken "phonelease/internal/jwt_token"
	"phonelease/internal/offchain/adapters"
	"phonelease/internal/offchain/handler"
	"phonelease/internal/offchain/service"
	"phonelease/internal/offchain/store"
	"phonelease/internal/platform/config"
	"phonelease/internal/platform/httpserver"
	"phonelease/internal/platform/logger"
	"phonelease/internal/platform/metrics"
	"phonelease/internal/platform/redis"
	ratemetrics "phonelease/internal/ratelimit/metrics"
	ratelimit "phonelease/internal/ratelimit/middleware"
	ratemodels "phonelease/internal/ratelimit/models"
	ratestore "phonelease/internal/ratelimit/store"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/platform/middleware/auth"
	"phonelease/pkg/platform/middleware/request"
	"phonelease/pkg/platform/middleware/requesttime"
)

func main() {
	cfg, rc, err := config.LoadGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, rc, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Gateway, rc config.RedisConfig, log *slog.Logger) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SigningKey, "0x"))
	if err != nil {
		return fmt.Errorf("GATEWAY_SIGNING_KEY: %w", err)
	}

	writers := make([]domain.Identity, 0, len(cfg.Writers))
	for _, raw := range cfg.Writers {
		w, err := domain.ParseIdentity(raw)
		if err != nil {
			return fmt.Errorf("GATEWAY_WRITERS: %w", err)
		}
		writers = append(writers, w)
	}

	var addresses service.AddressStore = store.NewInMemory()
	var limits ratelimit.Store = ratestore.NewInMemory()
	var ping func(context.Context) error
	client, err := redis.New(ctx, rc)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		addresses = store.NewRedis(client.Client, store.WithKeyPrefix(rc.KeyPrefix))
		limits = ratestore.NewRedis(client.Client, "")
		ping = client.Health
		log.Info("using redis address store")
	}

	leases := adapters.NewRegistryAdapter(cfg.RegistryURL, cfg.RegistryTimeout)
	svc, err := service.New(key, cfg.ResponseTTL, addresses, leases,
		service.WithLogger(log),
		service.WithWriterPolicy(service.NewAllowlist(writers...)),
	)
	if err != nil {
		return err
	}

	m := metrics.New()
	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(m.Middleware)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				log.WarnContext(r.Context(), "health check failed", "check", "redis", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	limiter := ratelimit.New(limits,
		ratemodels.Policy{Limit: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
		log, ratelimit.WithMetrics(ratemetrics.New(m.Registry)))
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	h := handler.New(svc, log)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit("gateway"))
		h.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity(tokens, log))
			h.RegisterAuthenticated(r)
		})
	})

	srv := httpserver.New(cfg.Addr, r)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting phonelease gateway", "addr", cfg.Addr, "signer", svc.Signer().Hex())
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
