package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// OwnerResponse reports the current capability holder.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// TransferRequest names the next owner.
type TransferRequest struct {
	NewOwner string `json:"new_owner"`

	newOwner domain.Identity
}

func (r *TransferRequest) Validate() error {
	id, err := domain.ParseIdentity(r.NewOwner)
	if err != nil {
		return err
	}
	r.newOwner = id
	return nil
}

// RequireOwner rejects requests whose caller identity is not the owner. It
// must run after the identity middleware.
func RequireOwner(capability Administrable, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Identity(ctx)
			if err := capability.Require(caller); err != nil {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", requestcontext.RequestID(ctx),
					"caller", caller.Hex(),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "owner capability required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Handler serves the owner endpoints.
type Handler struct {
	capability Administrable
	logger     *slog.Logger
}

func NewHandler(capability Administrable, logger *slog.Logger) *Handler {
	return &Handler{capability: capability, logger: logger}
}

// Register mounts the routes on a router already guarded by RequireOwner.
func (h *Handler) Register(r chi.Router) {
	r.Get("/owner", h.HandleGetOwner)
	r.Put("/owner", h.HandleTransferOwnership)
}

func (h *Handler) HandleGetOwner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{Owner: h.capability.Owner().Hex()})
}

func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.capability.TransferOwnership(ctx, requestcontext.Identity(ctx), req.newOwner); err != nil {
		h.logger.WarnContext(ctx, "ownership transfer failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{Owner: req.newOwner.Hex()})
}
