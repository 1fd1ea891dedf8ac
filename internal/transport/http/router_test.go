package httptransport_test

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"phonelease/internal/events"
	offchain "phonelease/internal/offchain/handler"
	offchainstore "phonelease/internal/offchain/store"
	"phonelease/internal/payments"
	ratemodels "phonelease/internal/ratelimit/models"
	registration "phonelease/internal/registration/models"
	resolution "phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/testutil/stack"
)

var (
	alice = domain.Identity{0xa1}
	bob   = domain.Identity{0xb0}
)

const identifier = "+15550001234"

var budget = new(big.Int).Mul(stack.BasePrice, big.NewInt(10))

type RouterSuite struct {
	suite.Suite
	stack *stack.Stack
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.stack = stack.New(s.T())
	s.stack.Fund(s.T(), budget, alice, bob)
}

func (s *RouterSuite) call(method, url, token string, body, out any) int {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *RouterSuite) registry(path string) string {
	return s.stack.Registry.URL + "/v1" + path
}

// follow completes a deferred lookup the way a client would. Writes are
// submitted to the gateway with token.
func (s *RouterSuite) follow(desc *resolution.DescriptorResponse, token string) (resolution.ResultResponse, int) {
	s.Require().NotNil(desc)
	s.Require().Len(desc.URLs, 1)
	s.True(strings.HasPrefix(desc.URLs[0], s.stack.Gateway.URL))

	callData, err := hexutil.Decode(desc.CallData)
	s.Require().NoError(err)
	url, inPath := resolution.ExpandURL(desc.URLs[0], common.HexToAddress(desc.Sender), callData)

	var answer offchain.LookupResponse
	if inPath {
		s.Require().Equal(http.StatusOK, s.call(http.MethodGet, url, "", nil, &answer))
	} else {
		body := offchain.WriteRequest{Sender: strings.ToLower(desc.Sender), Data: desc.CallData}
		s.Require().Equal(http.StatusOK, s.call(http.MethodPost, url, token, body, &answer))
	}

	var result resolution.ResultResponse
	status := s.call(http.MethodPost, s.registry("/resolve/callback"), "", resolution.CallbackRequest{
		Response:  answer.Data,
		ExtraData: desc.ExtraData,
	}, &result)
	return result, status
}

func (s *RouterSuite) TestOperationalRoutes() {
	var health map[string]any
	s.Equal(http.StatusOK, s.call(http.MethodGet, s.stack.Registry.URL+"/health", "", nil, &health))
	s.Equal("ok", health["status"])

	resp, err := http.Get(s.stack.Registry.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestAuthenticationAndAdminGuards() {
	register := registration.RegisterRequest{
		Identifier:      identifier,
		Tier:            "+1",
		DurationSeconds: "31536000",
		Payment:         stack.BasePrice.String(),
	}
	s.Equal(http.StatusUnauthorized, s.call(http.MethodPost, s.registry("/leases"), "", register, nil))
	s.Equal(http.StatusUnauthorized, s.call(http.MethodPost, s.registry("/leases"), "not-a-token", register, nil))

	s.Equal(http.StatusForbidden, s.call(http.MethodGet, s.registry("/admin/owner"), s.stack.Token(s.T(), alice), nil, nil))
	var owner map[string]string
	s.Equal(http.StatusOK, s.call(http.MethodGet, s.registry("/admin/owner"), s.stack.Token(s.T(), stack.Owner), nil, &owner))
	s.Equal(stack.Owner.Hex(), owner["owner"])
}

func (s *RouterSuite) TestRegisterBindAndResolve() {
	payment := "2000000"
	var receipt registration.ReceiptResponse
	status := s.call(http.MethodPost, s.registry("/leases"), s.stack.Token(s.T(), alice), registration.RegisterRequest{
		Identifier:      identifier,
		Tier:            "+1",
		DurationSeconds: "31536000",
		Payment:         payment,
		BindAddress:     bob.Hex(),
	}, &receipt)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(alice.Hex(), receipt.Lease.Owner)
	s.Equal(stack.BasePrice.String(), receipt.Refunded)
	s.True(receipt.FeeForwarded)
	s.Equal(0, stack.BasePrice.Cmp(s.stack.Treasury.Balance()))
	spent := new(big.Int).Sub(budget, s.stack.Wallet.Balance(alice))
	s.Equal(0, stack.BasePrice.Cmp(spent), "only the fee leaves the balance")

	s.Run("binding write needs the writer's token at the gateway", func() {
		url, _ := resolution.ExpandURL(receipt.Binding.URLs[0], common.HexToAddress(receipt.Binding.Sender), nil)
		body := offchain.WriteRequest{Sender: strings.ToLower(receipt.Binding.Sender), Data: receipt.Binding.CallData}
		s.Equal(http.StatusUnauthorized, s.call(http.MethodPost, url, "", body, nil))
		s.Equal(http.StatusForbidden, s.call(http.MethodPost, url, s.stack.Token(s.T(), bob), body, nil))
		s.Empty(s.stack.Events.ByType(events.TypeAddressUpdated))
	})

	s.Run("binding write is verified by the registry", func() {
		result, status := s.follow(receipt.Binding, s.stack.Token(s.T(), alice))
		s.Require().Equal(http.StatusOK, status)
		s.Equal(hexutil.Encode(bob.Bytes()), result.Result)
		s.Equal(s.stack.Signer.Hex(), result.Signer)

		updated := s.stack.Events.ByType(events.TypeAddressUpdated)
		s.Require().Len(updated, 1)
		s.Equal(alice, updated[0].Owner)
	})

	s.Run("addr read returns the bound address", func() {
		var desc resolution.DescriptorResponse
		s.Require().Equal(http.StatusOK, s.call(http.MethodGet, s.registry("/resolve/"+identifier+"/addr/60"), "", nil, &desc))
		s.Equal(stack.Target.Hex(), desc.Sender)
		result, status := s.follow(&desc, "")
		s.Require().Equal(http.StatusOK, status)
		s.Equal(hexutil.Encode(bob.Bytes()), result.Result)
	})

	s.Run("non-owner cannot set the address", func() {
		bobToken := s.stack.Token(s.T(), bob)
		status := s.call(http.MethodPost, s.registry("/resolve/"+identifier+"/addr/60"), bobToken,
			resolution.SetAddrRequest{Value: bob.Hex()}, nil)
		s.Equal(http.StatusUnauthorized, status)

		// A write assembled by hand and sent straight to the gateway is
		// refused by the gateway's own lease check.
		node := domain.Identifier(identifier).Node()
		callData := resolution.EncodeResolveCall([]byte(identifier), resolution.EncodeSetAddr(node, 60, bob.Bytes(), bob))
		url, _ := resolution.ExpandURL(s.stack.Gateway.URL+"/{sender}.json", stack.Target, callData)
		body := offchain.WriteRequest{Sender: strings.ToLower(stack.Target.Hex()), Data: hexutil.Encode(callData)}
		s.Equal(http.StatusForbidden, s.call(http.MethodPost, url, bobToken, body, nil))

		value, err := s.stack.Addresses.Get(s.T().Context(), offchainstore.Key{Node: node, CoinType: 60})
		s.Require().NoError(err)
		s.Equal(bob.Bytes(), value, "stored address is still the owner's binding")
	})

	s.Run("competing registration is refused", func() {
		status := s.call(http.MethodPost, s.registry("/leases"), s.stack.Token(s.T(), bob), registration.RegisterRequest{
			Identifier:      identifier,
			Tier:            "+1",
			DurationSeconds: "31536000",
			Payment:         payment,
		}, nil)
		s.Equal(http.StatusConflict, status)
	})
}

func (s *RouterSuite) TestWalletRoutes() {
	carol := domain.Identity{0xc0}
	deposit := payments.DepositRequest{Account: carol.Hex(), Amount: stack.BasePrice.String()}
	s.Equal(http.StatusForbidden, s.call(http.MethodPost, s.registry("/admin/wallet/deposits"), s.stack.Token(s.T(), carol), deposit, nil))

	register := registration.RegisterRequest{
		Identifier:      identifier,
		Tier:            "+1",
		DurationSeconds: "31536000",
		Payment:         stack.BasePrice.String(),
	}
	s.Equal(http.StatusPaymentRequired, s.call(http.MethodPost, s.registry("/leases"), s.stack.Token(s.T(), carol), register, nil))

	s.Equal(http.StatusOK, s.call(http.MethodPost, s.registry("/admin/wallet/deposits"), s.stack.Token(s.T(), stack.Owner), deposit, nil))
	s.Equal(http.StatusCreated, s.call(http.MethodPost, s.registry("/leases"), s.stack.Token(s.T(), carol), register, nil))

	var balance payments.BalanceResponse
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, s.registry("/wallet"), s.stack.Token(s.T(), carol), nil, &balance))
	s.Equal("0", balance.Balance)
}

func (s *RouterSuite) TestCallbackRejectsForgedAnswer() {
	var desc resolution.DescriptorResponse
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, s.registry("/resolve/"+identifier+"/addr/60"), "", nil, &desc))

	status := s.call(http.MethodPost, s.registry("/resolve/callback"), "", resolution.CallbackRequest{
		Response:  "0x1234",
		ExtraData: desc.ExtraData,
	}, nil)
	s.Equal(http.StatusBadRequest, status)
}

func TestAuthenticatedRoutesAreRateLimited(t *testing.T) {
	s := stack.New(t, stack.WithRateLimit(ratemodels.Policy{Limit: 2, Window: time.Minute}))
	token := s.Token(t, alice)

	statuses := make([]int, 0, 3)
	for range 3 {
		req, err := http.NewRequest(http.MethodPost, s.Registry.URL+"/v1/leases", strings.NewReader("{}"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, statuses)

	// Reads are not charged.
	resp, err := http.Get(s.Registry.URL + "/v1/leases/" + identifier + "/availability")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
