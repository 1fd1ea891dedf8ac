// Package stack starts an in-process registry and off-ledger gateway on
// httptest servers for end-to-end tests.
package stack

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"phonelease/internal/admin"
	"phonelease/internal/events"
	jwttoken "phonelease/internal/jwt_token"
	offchainhandler "phonelease/internal/offchain/handler"
	offchainservice "phonelease/internal/offchain/service"
	offchainstore "phonelease/internal/offchain/store"
	"phonelease/internal/payments"
	"phonelease/internal/platform/logger"
	"phonelease/internal/platform/metrics"
	pricinghandler "phonelease/internal/pricing/handler"
	pricingmodels "phonelease/internal/pricing/models"
	pricingservice "phonelease/internal/pricing/service"
	pricingstore "phonelease/internal/pricing/store"
	ratelimit "phonelease/internal/ratelimit/middleware"
	ratemodels "phonelease/internal/ratelimit/models"
	ratestore "phonelease/internal/ratelimit/store"
	leasehandler "phonelease/internal/registration/handler"
	leaseservice "phonelease/internal/registration/service"
	leasestore "phonelease/internal/registration/store"
	resolutionhandler "phonelease/internal/resolution/handler"
	resolutionservice "phonelease/internal/resolution/service"
	httptransport "phonelease/internal/transport/http"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/middleware/auth"
	"phonelease/pkg/platform/middleware/request"
)

// SigningKey signs the registry's bearer tokens.
const SigningKey = "test-signing-key"

// BasePrice is the yearly price for tiers without a multiplier.
var BasePrice = big.NewInt(1_000_000)

var (
	Owner  = domain.Identity{0x01}
	Target = domain.Identity{0x7a}
)

// Stack is a running registry plus gateway pair.
type Stack struct {
	Registry *httptest.Server
	Gateway  *httptest.Server

	Events    *events.InMemory
	Treasury  *payments.InMemoryTreasury
	Wallet    *payments.Wallet
	Addresses *offchainstore.InMemoryStore
	Signer    domain.Identity

	tokens *jwttoken.JWTService
}

type options struct {
	rateLimit ratemodels.Policy
}

type Option func(*options)

// WithRateLimit throttles the registry's authenticated routes.
func WithRateLimit(policy ratemodels.Policy) Option {
	return func(o *options) {
		o.rateLimit = policy
	}
}

// New starts both servers and closes them when t finishes.
func New(t testing.TB, opts ...Option) *Stack {
	t.Helper()
	log := logger.Discard()
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	leases := leasestore.NewInMemory()
	tokens := jwttoken.NewJWTService(SigningKey, "phonelease", "phonelease-api")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addresses := offchainstore.NewInMemory()
	answers, err := offchainservice.New(key, 5*time.Minute, addresses, leases, offchainservice.WithLogger(log))
	require.NoError(t, err)
	gw := chi.NewRouter()
	gw.Use(request.Middleware)
	gwHandler := offchainhandler.New(answers, log)
	gwHandler.Register(gw)
	gw.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity(tokens, log))
		gwHandler.RegisterAuthenticated(r)
	})
	gatewaySrv := httptest.NewServer(gw)
	t.Cleanup(gatewaySrv.Close)

	sink := events.NewInMemory()
	publisher := events.NewPublisher([]events.Sink{sink}, events.WithLogger(log))
	owner, err := admin.New(Owner, admin.WithPublisher(publisher))
	require.NoError(t, err)

	engine, err := pricingservice.New(pricingstore.NewInMemory(BasePrice), owner,
		pricingmodels.Bounds{Min: 28 * 24 * time.Hour, Max: 10 * 365 * 24 * time.Hour},
		pricingservice.WithPublisher(publisher),
	)
	require.NoError(t, err)

	resolver, err := resolutionservice.New(resolutionservice.Config{
		Target:     Target,
		Signer:     answers.Signer(),
		GatewayURL: gatewaySrv.URL,
	}, owner, leases, resolutionservice.WithPublisher(publisher))
	require.NoError(t, err)

	treasury := payments.NewInMemoryTreasury()
	wallet := payments.NewWallet()
	ledger, err := leaseservice.New(leases, engine, treasury, wallet, owner,
		leaseservice.WithPublisher(publisher),
		leaseservice.WithAddressBinder(resolver),
	)
	require.NoError(t, err)
	leases.SetCallback(ledger)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  metrics.New(),
		Tokens:   tokens,
		Owner:    owner,
		Limiter:  ratelimit.New(ratestore.NewInMemory(), o.rateLimit, log),
		Admin:    admin.NewHandler(owner, log),
		Pricing:  pricinghandler.New(engine, log),
		Leases:   leasehandler.New(ledger, log),
		Resolver: resolutionhandler.New(resolver, log),
		Wallet:   payments.NewHandler(wallet, log),
	})
	registrySrv := httptest.NewServer(router)
	t.Cleanup(registrySrv.Close)

	return &Stack{
		Registry:  registrySrv,
		Gateway:   gatewaySrv,
		Events:    sink,
		Treasury:  treasury,
		Wallet:    wallet,
		Addresses: addresses,
		Signer:    answers.Signer(),
		tokens:    tokens,
	}
}

// Fund deposits amount into each account's wallet balance.
func (s *Stack) Fund(t testing.TB, amount *big.Int, ids ...domain.Identity) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Wallet.Deposit(context.Background(), id, amount))
	}
}

// Token returns a bearer token for id.
func (s *Stack) Token(t testing.TB, id domain.Identity) string {
	t.Helper()
	token, err := s.tokens.GenerateToken(id, time.Hour)
	require.NoError(t, err)
	return token
}
