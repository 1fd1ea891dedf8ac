package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	leased   = domain.Identifier("+15550001234")
)

func registry(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/leases/+15550001234":
			httputil.WriteJSON(w, http.StatusOK, models.LeaseResponse{Identifier: leased.String(), Owner: owner.Hex()})
		case "/v1/leases/+15550009999":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistryAdapterCanModify(t *testing.T) {
	a := NewRegistryAdapter(registry(t).URL+"/", time.Second)
	ctx := context.Background()

	ok, err := a.CanModify(ctx, leased, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanModify(ctx, leased, stranger)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanModify(ctx, leased, domain.ZeroIdentity)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanModify(ctx, domain.Identifier("+15550005555"), owner)
	require.NoError(t, err)
	assert.False(t, ok, "unknown lease")

	_, err = a.CanModify(ctx, domain.Identifier("+15550009999"), owner)
	assert.ErrorContains(t, err, "registry answered 500")
}
