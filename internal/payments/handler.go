package payments

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// BalanceResponse reports an account's spendable balance.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// DepositRequest credits amount to account.
type DepositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`

	account domain.Identity
	amount  *big.Int
}

func (r *DepositRequest) Validate() error {
	id, err := domain.ParseIdentity(r.Account)
	if err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(r.Amount), 10)
	if !ok || v.Sign() <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be a positive base-10 integer")
	}
	r.account, r.amount = id, v
	return nil
}

// Handler serves wallet balances and owner deposits.
type Handler struct {
	wallet *Wallet
	logger *slog.Logger
}

func NewHandler(wallet *Wallet, logger *slog.Logger) *Handler {
	return &Handler{wallet: wallet, logger: logger}
}

// RegisterAuthenticated mounts the caller's balance.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/wallet", h.HandleBalance)
}

// RegisterAdmin mounts deposits on a router already guarded by RequireOwner.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/wallet/deposits", h.HandleDeposit)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	caller := requestcontext.Identity(r.Context())
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: caller.Hex(),
		Balance: h.wallet.Balance(caller).String(),
	})
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.wallet.Deposit(ctx, req.account, req.amount); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			err = dErrors.Wrap(err, dErrors.CodeValidation, "invalid deposit")
		}
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "wallet deposit",
		"request_id", requestID,
		"account", req.account.Hex(),
		"amount", req.amount.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: req.account.Hex(),
		Balance: h.wallet.Balance(req.account).String(),
	})
}
