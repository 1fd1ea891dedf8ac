package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// Service is the ledger surface used by the HTTP layer.
type Service interface {
	Register(ctx context.Context, cmd models.RegisterCommand) (*models.Receipt, error)
	Renew(ctx context.Context, cmd models.RenewCommand) (*models.Receipt, error)
	Lease(ctx context.Context, identifier string) (*models.Lease, error)
	Available(ctx context.Context, identifier string) (bool, error)
	StuckFees(ctx context.Context) (*big.Int, error)
	WithdrawStuckFees(ctx context.Context, actor domain.Identity) (*big.Int, error)
}

// Handler serves the lease endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/leases/{identifier}", h.HandleGetLease)
	r.Get("/leases/{identifier}/availability", h.HandleAvailability)
}

// RegisterAuthenticated mounts routes that act on behalf of the caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/leases", h.HandleRegister)
	r.Post("/leases/{identifier}/renew", h.HandleRenew)
}

// RegisterAdmin mounts the owner-only routes on a guarded router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/fees/stuck", h.HandleStuckFees)
	r.Post("/fees/withdraw", h.HandleWithdraw)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receipt, err := h.service.Register(ctx, req.Command(requestcontext.Identity(ctx)))
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", requestID,
			"identifier", req.Identifier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewReceiptResponse(receipt))
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	identifier := chi.URLParam(r, "identifier")

	req, ok := httputil.DecodeAndPrepare[models.RenewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receipt, err := h.service.Renew(ctx, req.Command(identifier, requestcontext.Identity(ctx)))
	if err != nil {
		h.logger.WarnContext(ctx, "renewal failed",
			"request_id", requestID,
			"identifier", identifier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewReceiptResponse(receipt))
}

func (h *Handler) HandleGetLease(w http.ResponseWriter, r *http.Request) {
	lease, err := h.service.Lease(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewLeaseResponse(lease))
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	available, err := h.service.Available(r.Context(), identifier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AvailabilityResponse{Identifier: identifier, Available: available})
}

func (h *Handler) HandleStuckFees(w http.ResponseWriter, r *http.Request) {
	amount, err := h.service.StuckFees(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StuckFeesResponse{StuckFees: amount.String()})
}

func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := h.service.WithdrawStuckFees(ctx, requestcontext.Identity(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.WithdrawResponse{Amount: amount.String()})
}
