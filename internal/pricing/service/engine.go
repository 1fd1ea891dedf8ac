package service

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks Store,EventPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"phonelease/internal/events"
	"phonelease/internal/pricing/metrics"
	"phonelease/internal/pricing/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/sentinel"
)

// Store persists the base price and per-tier multipliers.
type Store interface {
	BasePrice(ctx context.Context) (*big.Int, error)
	SetBasePrice(ctx context.Context, price *big.Int) error
	Multiplier(ctx context.Context, tier domain.Tier) (uint32, error)
	SetMultiplier(ctx context.Context, entry models.PriceTier) error
	RemoveMultiplier(ctx context.Context, tier domain.Tier) (uint32, error)
	ListMultipliers(ctx context.Context) ([]models.PriceTier, error)
}

// Authorizer gates the administrative mutators.
type Authorizer interface {
	Require(actor domain.Identity) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Engine computes tiered, duration-scaled lease fees.
type Engine struct {
	mu        sync.RWMutex
	store     Store
	owner     Authorizer
	bounds    models.Bounds
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine. bounds apply to every fee computation.
func New(store Store, owner Authorizer, bounds models.Bounds, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("pricing store is required")
	}
	if owner == nil {
		return nil, errors.New("owner capability is required")
	}
	if bounds.Min <= 0 || bounds.Min > bounds.Max {
		return nil, errors.New("invalid duration bounds")
	}
	e := &Engine{
		store:  store,
		owner:  owner,
		bounds: bounds,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Bounds returns the accepted duration range.
func (e *Engine) Bounds() models.Bounds {
	return e.bounds
}

// YearlyPrice returns basePrice scaled by the tier's multiplier, or basePrice
// when none is stored. The division truncates.
func (e *Engine) YearlyPrice(ctx context.Context, tier domain.Tier) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.yearlyPrice(ctx, tier)
}

func (e *Engine) yearlyPrice(ctx context.Context, tier domain.Tier) (*big.Int, error) {
	base, err := e.store.BasePrice(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load base price")
	}
	bps, err := e.store.Multiplier(ctx, tier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return base, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tier multiplier")
	}
	price := new(big.Int).Mul(base, new(big.Int).SetUint64(uint64(bps)))
	return price.Quo(price, big.NewInt(int64(models.DefaultMultiplierBPS))), nil
}

// Quote validates the duration and prices it as whole started years.
func (e *Engine) Quote(ctx context.Context, tier domain.Tier, d time.Duration) (*models.FeeQuote, error) {
	if err := e.bounds.Check(d); err != nil {
		if e.metrics != nil {
			e.metrics.IncrementQuoteRejected()
		}
		return nil, err
	}

	e.mu.RLock()
	perYear, err := e.yearlyPrice(ctx, tier)
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	years := models.Years(d)
	total := new(big.Int).Mul(perYear, new(big.Int).SetUint64(years))
	if e.metrics != nil {
		e.metrics.IncrementQuote(tier.String())
	}
	return &models.FeeQuote{
		Tier:         tier,
		Duration:     d,
		Years:        years,
		PricePerYear: perYear,
		Total:        total,
	}, nil
}

// RegistrationFee returns years * YearlyPrice(tier).
func (e *Engine) RegistrationFee(ctx context.Context, tier domain.Tier, d time.Duration) (*big.Int, error) {
	q, err := e.Quote(ctx, tier, d)
	if err != nil {
		return nil, err
	}
	return q.Total, nil
}

// RenewalFee follows the registration curve.
func (e *Engine) RenewalFee(ctx context.Context, tier domain.Tier, d time.Duration) (*big.Int, error) {
	return e.RegistrationFee(ctx, tier, d)
}

func (e *Engine) BasePrice(ctx context.Context) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	base, err := e.store.BasePrice(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load base price")
	}
	return base, nil
}

// Multipliers lists the stored tier entries.
func (e *Engine) Multipliers(ctx context.Context) ([]models.PriceTier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list, err := e.store.ListMultipliers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tier multipliers")
	}
	return list, nil
}

func (e *Engine) SetBasePrice(ctx context.Context, actor domain.Identity, price *big.Int) error {
	if err := e.owner.Require(actor); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return dErrors.New(dErrors.CodeValidation, "base price must be greater than zero")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SetBasePrice(ctx, price); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store base price")
	}
	e.logger.InfoContext(ctx, "base price updated", "price", price.String())
	e.changed(ctx, "base_price", events.Event{
		Type:   events.TypeBasePriceUpdated,
		Amount: new(big.Int).Set(price),
	})
	return nil
}

func (e *Engine) SetCountryMultiplier(ctx context.Context, actor domain.Identity, tier domain.Tier, bps uint32) error {
	if err := e.owner.Require(actor); err != nil {
		return err
	}
	if err := models.ValidateMultiplier(bps); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SetMultiplier(ctx, models.PriceTier{Tier: tier, MultiplierBPS: bps}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store tier multiplier")
	}
	e.logger.InfoContext(ctx, "country multiplier set", "tier", tier.String(), "multiplier_bps", bps)
	e.changed(ctx, "multiplier_set", events.Event{
		Type:       events.TypeCountryMultiplierSet,
		Tier:       tier,
		Multiplier: bps,
	})
	return nil
}

// RemoveCountryMultiplier restores the default multiplier for tier. Removing
// a tier without a stored entry is a validation error.
func (e *Engine) RemoveCountryMultiplier(ctx context.Context, actor domain.Identity, tier domain.Tier) error {
	if err := e.owner.Require(actor); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	removed, err := e.store.RemoveMultiplier(ctx, tier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeValidation, "tier %s has no stored multiplier", tier)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove tier multiplier")
	}
	e.logger.InfoContext(ctx, "country multiplier removed", "tier", tier.String(), "multiplier_bps", removed)
	e.changed(ctx, "multiplier_removed", events.Event{
		Type:       events.TypeCountryMultiplierRemoved,
		Tier:       tier,
		Multiplier: removed,
	})
	return nil
}

func (e *Engine) changed(ctx context.Context, kind string, event events.Event) {
	if e.metrics != nil {
		e.metrics.IncrementConfigChange(kind)
	}
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish pricing event", "kind", kind, "error", err)
	}
}
