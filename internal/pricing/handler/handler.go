package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"phonelease/internal/pricing/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// Service is the pricing surface used by the HTTP layer.
type Service interface {
	Quote(ctx context.Context, tier domain.Tier, d time.Duration) (*models.FeeQuote, error)
	BasePrice(ctx context.Context) (*big.Int, error)
	Multipliers(ctx context.Context) ([]models.PriceTier, error)
	Bounds() models.Bounds
	SetBasePrice(ctx context.Context, actor domain.Identity, price *big.Int) error
	SetCountryMultiplier(ctx context.Context, actor domain.Identity, tier domain.Tier, bps uint32) error
	RemoveCountryMultiplier(ctx context.Context, actor domain.Identity, tier domain.Tier) error
}

// Handler serves the pricing endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public pricing routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/pricing/quote", h.HandleQuote)
	r.Get("/pricing/tiers", h.HandleListTiers)
}

// RegisterAdmin mounts the owner-only routes on a guarded router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/pricing/base-price", h.HandleSetBasePrice)
	r.Put("/pricing/tiers/{tier}", h.HandleSetMultiplier)
	r.Delete("/pricing/tiers/{tier}", h.HandleRemoveMultiplier)
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	query := &models.QuoteQuery{
		Tier:            r.URL.Query().Get("tier"),
		DurationSeconds: r.URL.Query().Get("duration_seconds"),
	}
	if err := query.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	quote, err := h.service.Quote(ctx, query.ParsedTier(), query.ParsedDuration())
	if err != nil {
		h.logger.WarnContext(ctx, "quote failed",
			"request_id", requestID,
			"tier", query.Tier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewFeeQuoteResponse(*quote))
}

func (h *Handler) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	base, err := h.service.BasePrice(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tiers, err := h.service.Multipliers(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bounds := h.service.Bounds()
	resp := models.PricingResponse{
		BasePrice:            base.String(),
		DefaultMultiplierBPS: models.DefaultMultiplierBPS,
		MinDurationSeconds:   int64(bounds.Min.Seconds()),
		MaxDurationSeconds:   int64(bounds.Max.Seconds()),
		Tiers:                make([]models.PriceTierResponse, 0, len(tiers)),
	}
	for _, t := range tiers {
		resp.Tiers = append(resp.Tiers, models.PriceTierResponse{Tier: t.Tier.String(), MultiplierBPS: t.MultiplierBPS})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleSetBasePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SetBasePriceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetBasePrice(ctx, requestcontext.Identity(ctx), req.ParsedPrice()); err != nil {
		h.logger.WarnContext(ctx, "set base price failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.HandleListTiers(w, r)
}

func (h *Handler) HandleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tier, err := domain.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetMultiplierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetCountryMultiplier(ctx, requestcontext.Identity(ctx), tier, req.MultiplierBPS); err != nil {
		h.logger.WarnContext(ctx, "set multiplier failed",
			"request_id", requestID,
			"tier", tier.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.PriceTierResponse{Tier: tier.String(), MultiplierBPS: req.MultiplierBPS})
}

func (h *Handler) HandleRemoveMultiplier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tier, err := domain.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveCountryMultiplier(ctx, requestcontext.Identity(ctx), tier); err != nil {
		h.logger.WarnContext(ctx, "remove multiplier failed",
			"request_id", requestcontext.RequestID(ctx),
			"tier", tier.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
