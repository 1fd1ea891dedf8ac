package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"phonelease/internal/resolution/models"
	"phonelease/internal/resolution/service"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// Service is the resolver surface used by the HTTP layer.
type Service interface {
	BeginResolve(ctx context.Context, name, data []byte) *models.LookupDescriptor
	Addr(ctx context.Context, node domain.Node, coinType uint64) *models.LookupDescriptor
	SetAddr(ctx context.Context, caller domain.Identity, id domain.Identifier, coinType uint64, value []byte) (*models.LookupDescriptor, error)
	CompleteResolve(ctx context.Context, response, extraData []byte) (*service.Result, error)
	UpdateSigner(ctx context.Context, actor, signer domain.Identity) error
	UpdateGatewayURL(ctx context.Context, actor domain.Identity, gatewayURL string) error
	Target() domain.Identity
	Signer() domain.Identity
	GatewayURL() string
}

// Handler serves the deferred lookup endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the unauthenticated routes. Reads and callbacks need no
// identity: the proof carries the trust.
func (h *Handler) Register(r chi.Router) {
	r.Get("/resolve/{name}/addr/{coinType}", h.HandleAddr)
	r.Post("/resolve", h.HandleResolve)
	r.Post("/resolve/callback", h.HandleCallback)
}

// RegisterAuthenticated mounts routes that embed the caller identity. Writes
// are addressed by identifier, never by node, so the lease can be checked.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/resolve/{name}/addr/{coinType}", h.HandleSetAddr)
}

// RegisterAdmin mounts the owner-only routes on a guarded router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/resolver", h.HandleGetConfig)
	r.Put("/resolver/signer", h.HandleUpdateSigner)
	r.Put("/resolver/gateway-url", h.HandleUpdateGatewayURL)
}

func (h *Handler) HandleAddr(w http.ResponseWriter, r *http.Request) {
	node, coinType, ok := nodeAndCoin(w, r)
	if !ok {
		return
	}
	desc := h.service.Addr(r.Context(), node, coinType)
	httputil.WriteJSON(w, http.StatusOK, models.NewDescriptorResponse(desc))
}

func (h *Handler) HandleSetAddr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseIdentifier(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	coinType, err := models.ParseCoinType(chi.URLParam(r, "coinType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetAddrRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	desc, err := h.service.SetAddr(ctx, requestcontext.Identity(ctx), id, coinType, req.ParsedValue())
	if err != nil {
		h.logger.WarnContext(ctx, "set addr failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewDescriptorResponse(desc))
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ResolveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	desc := h.service.BeginResolve(ctx, req.ParsedName(), req.ParsedData())
	httputil.WriteJSON(w, http.StatusOK, models.NewDescriptorResponse(desc))
}

func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CallbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.CompleteResolve(ctx, req.ParsedResponse(), req.ParsedExtraData())
	if err != nil {
		h.logger.WarnContext(ctx, "callback rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ResultResponse{
		Result: hexutil.Encode(result.Data),
		Signer: result.Signer.Hex(),
	})
}

func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.ResolverResponse{
		Target:     h.service.Target().Hex(),
		Signer:     h.service.Signer().Hex(),
		GatewayURL: h.service.GatewayURL(),
	})
}

func (h *Handler) HandleUpdateSigner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateSignerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.UpdateSigner(ctx, requestcontext.Identity(ctx), req.ParsedSigner()); err != nil {
		h.logger.WarnContext(ctx, "update signer failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.HandleGetConfig(w, r)
}

func (h *Handler) HandleUpdateGatewayURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateGatewayURLRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.UpdateGatewayURL(ctx, requestcontext.Identity(ctx), req.URL); err != nil {
		h.logger.WarnContext(ctx, "update gateway url failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.HandleGetConfig(w, r)
}

func nodeAndCoin(w http.ResponseWriter, r *http.Request) (domain.Node, uint64, bool) {
	node, err := models.ParseNodeOrIdentifier(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Node{}, 0, false
	}
	coinType, err := models.ParseCoinType(chi.URLParam(r, "coinType"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Node{}, 0, false
	}
	return node, coinType, true
}
