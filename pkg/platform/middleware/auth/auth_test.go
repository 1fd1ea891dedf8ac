package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"phonelease/pkg/domain"
	"phonelease/pkg/requestcontext"
)

type stubValidator struct {
	identity domain.Identity
	err      error
}

func (v stubValidator) ValidateIdentity(string) (domain.Identity, error) {
	return v.identity, v.err
}

func TestRequireIdentity(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	caller := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	var seen domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Identity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		h := RequireIdentity(stubValidator{identity: caller}, logger)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		h := RequireIdentity(stubValidator{err: errors.New("bad signature")}, logger)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects identity", func(t *testing.T) {
		h := RequireIdentity(stubValidator{identity: caller}, logger)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, caller, seen)
	})
}
