package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// Service answers deferred lookups.
type Service interface {
	Read(ctx context.Context, sender common.Address, callData []byte) ([]byte, error)
	Write(ctx context.Context, sender common.Address, callData []byte) ([]byte, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read route. Paths accept an optional ".json" suffix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/{sender}/{data}", h.HandleRead)
}

// RegisterAuthenticated mounts the write route. The bearer identity must be
// the sender embedded in the request.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/{sender}", h.HandleWrite)
}

// WriteRequest is the POST body.
type WriteRequest struct {
	Sender string `json:"sender"`
	Data   string `json:"data"`

	sender common.Address
	data   []byte
}

func (r *WriteRequest) Validate() error {
	sender, err := parseSender(r.Sender)
	if err != nil {
		return err
	}
	data, err := parseData(r.Data)
	if err != nil {
		return err
	}
	r.sender, r.data = sender, data
	return nil
}

// LookupResponse carries the encoded signed response.
type LookupResponse struct {
	Data string `json:"data"`
}

func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sender, err := parseSender(chi.URLParam(r, "sender"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	data, err := parseData(chi.URLParam(r, "data"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp, err := h.service.Read(ctx, sender, data)
	if err != nil {
		h.logger.WarnContext(ctx, "lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"sender", sender.Hex(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LookupResponse{Data: hexutil.Encode(resp)})
}

func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sender, err := parseSender(chi.URLParam(r, "sender"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[WriteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.sender != sender {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "body sender does not match path"))
		return
	}
	resp, err := h.service.Write(ctx, sender, req.data)
	if err != nil {
		h.logger.WarnContext(ctx, "write failed",
			"request_id", requestID,
			"sender", sender.Hex(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LookupResponse{Data: hexutil.Encode(resp)})
}

func parseSender(raw string) (common.Address, error) {
	return domain.ParseIdentity(strings.TrimSuffix(raw, ".json"))
}

func parseData(raw string) ([]byte, error) {
	b, err := hexutil.Decode(strings.TrimSuffix(raw, ".json"))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "data must be 0x-prefixed hex")
	}
	return b, nil
}
