package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"phonelease/internal/admin"
	"phonelease/internal/events"
	"phonelease/internal/resolution/metrics"
	"phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
	"phonelease/pkg/requestcontext"
	"phonelease/pkg/signature"
)

var (
	registryOwner = domain.Identity{0x01}
	target        = domain.Identity{0x7a}
	writer        = domain.Identity{0xa1}
	stranger      = domain.Identity{0xee}
	identifier    = domain.Identifier("+15550001234")
	node          = identifier.Node()
	now           = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// leaseTable grants modification to the recorded owner of each identifier.
type leaseTable struct {
	owners map[domain.Identifier]domain.Identity
	err    error
}

func (t leaseTable) CanModify(_ context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	if t.err != nil {
		return false, t.err
	}
	owner, ok := t.owners[id]
	return ok && owner == actor, nil
}

func leasedTo(owner domain.Identity) leaseTable {
	return leaseTable{owners: map[domain.Identifier]domain.Identity{identifier: owner}}
}

// =============================================================================
// Gateway Test Suite
// =============================================================================

type GatewaySuite struct {
	suite.Suite
	key     *ecdsa.PrivateKey
	sink    *events.InMemory
	gateway *Gateway
	ctx     context.Context
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	var err error
	s.key, err = crypto.GenerateKey()
	s.Require().NoError(err)

	capability, err := admin.New(registryOwner)
	s.Require().NoError(err)
	s.sink = events.NewInMemory()
	s.gateway, err = New(Config{
		Target:     target,
		Signer:     crypto.PubkeyToAddress(s.key.PublicKey),
		GatewayURL: "https://gateway.test",
	}, capability, leasedTo(writer),
		WithPublisher(events.NewPublisher([]events.Sink{s.sink})),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.ctx = requestcontext.WithTime(context.Background(), now)
}

// answer plays the off-ledger source: it signs result for the descriptor.
func (s *GatewaySuite) answer(key *ecdsa.PrivateKey, desc *models.LookupDescriptor, signedFor common.Address, result []byte, expires time.Time) []byte {
	exp := uint64(expires.Unix())
	sig, err := signature.Sign(key, signedFor, exp, desc.CallData, result)
	s.Require().NoError(err)
	resp, err := signature.EncodeResponse(signature.SignedResponse{Result: result, Expires: exp, Signature: sig})
	s.Require().NoError(err)
	return resp
}

func (s *GatewaySuite) TestNew() {
	capability, _ := admin.New(registryOwner)
	cases := []struct {
		name string
		cfg  Config
		msg  string
	}{
		{"missing target", Config{Signer: writer, GatewayURL: "https://gw.test"}, "resolver target is required"},
		{"missing signer", Config{Target: target, GatewayURL: "https://gw.test"}, "trusted signer is required"},
		{"relative url", Config{Target: target, Signer: writer, GatewayURL: "/gw"}, "gateway url"},
		{"bad scheme", Config{Target: target, Signer: writer, GatewayURL: "ftp://gw.test"}, "gateway url"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := New(tc.cfg, capability, leasedTo(writer))
			s.ErrorContains(err, tc.msg)
		})
	}
	_, err := New(Config{Target: target, Signer: writer, GatewayURL: "https://gw.test"}, nil, leasedTo(writer))
	s.ErrorContains(err, "owner capability is required")
	_, err = New(Config{Target: target, Signer: writer, GatewayURL: "https://gw.test"}, capability, nil)
	s.ErrorContains(err, "lease authority is required")
}

// =============================================================================
// Phase one: descriptors
// =============================================================================

func (s *GatewaySuite) TestAddrDescriptor() {
	desc := s.gateway.Addr(s.ctx, node, domain.CoinTypeETH)

	s.Equal(target, domain.Identity(desc.Sender))
	s.Equal([]string{"https://gateway.test/{sender}/{data}.json"}, desc.URLs)
	s.Equal(models.SelectorResolveWithProof, desc.CallbackSelector)
	s.Equal(desc.CallData, desc.ExtraData)

	name, data, err := models.DecodeResolveCall(desc.CallData)
	s.Require().NoError(err)
	s.Equal(node[:], name)
	s.Equal(models.EncodeAddr(node, domain.CoinTypeETH), data)
	s.Empty(s.sink.List(), "starting a lookup has no side effects")
}

func (s *GatewaySuite) TestSetAddrDescriptorUsesWriteTemplate() {
	value := common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()
	desc, err := s.gateway.SetAddr(s.ctx, writer, identifier, domain.CoinTypeETH, value)
	s.Require().NoError(err)
	s.Equal([]string{"https://gateway.test/{sender}.json"}, desc.URLs)

	name, data, err := models.DecodeResolveCall(desc.CallData)
	s.Require().NoError(err)
	s.Equal([]byte(identifier), name)
	req, err := models.DecodeRequest(data)
	s.Require().NoError(err)
	s.Equal(writer, req.Sender)
	s.Equal(node, req.Node)

	_, err = s.gateway.SetAddr(s.ctx, domain.ZeroIdentity, identifier, domain.CoinTypeETH, value)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.gateway.SetAddr(s.ctx, writer, identifier, domain.CoinTypeETH, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GatewaySuite) TestSetAddrRequiresTheLease() {
	_, err := s.gateway.SetAddr(s.ctx, stranger, identifier, domain.CoinTypeETH, value0xb0())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "non-owner")

	_, err = s.gateway.SetAddr(s.ctx, writer, domain.Identifier("+4479460000000"), domain.CoinTypeETH, value0xb0())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "unleased identifier")

	capability, _ := admin.New(registryOwner)
	broken, err := New(Config{Target: target, Signer: writer, GatewayURL: "https://gw.test"}, capability,
		leaseTable{err: errors.New("store offline")})
	s.Require().NoError(err)
	_, err = broken.SetAddr(s.ctx, writer, identifier, domain.CoinTypeETH, value0xb0())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func value0xb0() []byte {
	return common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()
}

func (s *GatewaySuite) TestRawResolveWithUnknownSelectorIsARead() {
	desc := s.gateway.BeginResolve(s.ctx, []byte("name"), []byte{0xde, 0xad, 0xbe, 0xef})
	s.Equal([]string{"https://gateway.test/{sender}/{data}.json"}, desc.URLs)
}

// =============================================================================
// Phase two: verification
// =============================================================================

func (s *GatewaySuite) TestCompleteResolve() {
	result := common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()
	desc := s.gateway.Addr(s.ctx, node, domain.CoinTypeETH)
	resp := s.answer(s.key, desc, common.Address(target), result, now.Add(5*time.Minute))

	got, err := s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
	s.Require().NoError(err)
	s.Equal(result, got.Data)
	s.Equal(s.gateway.Signer(), got.Signer)
	s.Equal(models.OpAddr, got.Request.Op)
	s.Empty(s.sink.ByType(events.TypeAddressUpdated))
}

func (s *GatewaySuite) TestCompleteSetAddrEmitsAddressUpdated() {
	value := common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()
	desc, err := s.gateway.SetAddr(s.ctx, writer, identifier, domain.CoinTypeETH, value)
	s.Require().NoError(err)
	resp := s.answer(s.key, desc, common.Address(target), value, now.Add(time.Minute))

	_, err = s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
	s.Require().NoError(err)

	updates := s.sink.ByType(events.TypeAddressUpdated)
	s.Require().Len(updates, 1)
	s.Equal(node, updates[0].Node)
	s.Equal(domain.CoinTypeETH, updates[0].CoinType)
	s.Equal(value, updates[0].Value)
}

func (s *GatewaySuite) TestCompleteResolveRejections() {
	desc := s.gateway.Addr(s.ctx, node, domain.CoinTypeETH)
	result := []byte{0x42}

	s.Run("expired at now", func() {
		resp := s.answer(s.key, desc, common.Address(target), result, now)
		_, err := s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Run("untrusted signer", func() {
		other, err := crypto.GenerateKey()
		s.Require().NoError(err)
		resp := s.answer(other, desc, common.Address(target), result, now.Add(time.Minute))
		_, err = s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("signed for another target", func() {
		resp := s.answer(s.key, desc, common.Address{0x99}, result, now.Add(time.Minute))
		_, err := s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("context swapped for another request", func() {
		resp := s.answer(s.key, desc, common.Address(target), result, now.Add(time.Minute))
		other := s.gateway.Addr(s.ctx, node, 0)
		_, err := s.gateway.CompleteResolve(s.ctx, resp, other.ExtraData)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("malformed response", func() {
		_, err := s.gateway.CompleteResolve(s.ctx, []byte{0x01}, desc.ExtraData)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed context", func() {
		_, err := s.gateway.CompleteResolve(s.ctx, []byte{0x01}, []byte{0x02})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// reentrantSink reads gateway state from inside Append.
type reentrantSink struct {
	gateway *Gateway
	seen    []domain.Identity
}

func (r *reentrantSink) Append(context.Context, events.Event) error {
	r.seen = append(r.seen, r.gateway.Signer())
	_ = r.gateway.GatewayURL()
	return nil
}

func (s *GatewaySuite) TestEventsArePublishedOutsideTheLock() {
	capability, err := admin.New(registryOwner)
	s.Require().NoError(err)
	sink := &reentrantSink{}
	gw, err := New(Config{
		Target:     target,
		Signer:     crypto.PubkeyToAddress(s.key.PublicKey),
		GatewayURL: "https://gateway.test",
	}, capability, leasedTo(writer), WithPublisher(events.NewPublisher([]events.Sink{sink})))
	s.Require().NoError(err)
	sink.gateway = gw

	value := common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()
	desc, err := gw.SetAddr(s.ctx, writer, identifier, domain.CoinTypeETH, value)
	s.Require().NoError(err)
	resp := s.answer(s.key, desc, common.Address(target), value, now.Add(time.Minute))

	done := make(chan error, 1)
	go func() {
		if _, err := gw.CompleteResolve(s.ctx, resp, desc.ExtraData); err != nil {
			done <- err
			return
		}
		if err := gw.UpdateGatewayURL(s.ctx, registryOwner, "https://other.test"); err != nil {
			done <- err
			return
		}
		done <- gw.UpdateSigner(s.ctx, registryOwner, stranger)
	}()
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("publishing blocked on the gateway lock")
	}
	s.Len(sink.seen, 3)
	s.Equal(stranger, sink.seen[2], "signer event is published after the update")
}

// =============================================================================
// Configuration
// =============================================================================

func (s *GatewaySuite) TestUpdateSigner() {
	newKey, err := crypto.GenerateKey()
	s.Require().NoError(err)
	newSigner := crypto.PubkeyToAddress(newKey.PublicKey)

	err = s.gateway.UpdateSigner(s.ctx, writer, newSigner)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	err = s.gateway.UpdateSigner(s.ctx, registryOwner, domain.ZeroIdentity)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.gateway.UpdateSigner(s.ctx, registryOwner, newSigner))
	s.Equal(newSigner, s.gateway.Signer())
	s.Len(s.sink.ByType(events.TypeSignerUpdated), 1)

	desc := s.gateway.Addr(s.ctx, node, domain.CoinTypeETH)
	resp := s.answer(s.key, desc, common.Address(target), []byte{0x01}, now.Add(time.Minute))
	_, err = s.gateway.CompleteResolve(s.ctx, resp, desc.ExtraData)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "old signer is no longer trusted")
}

func (s *GatewaySuite) TestUpdateGatewayURL() {
	err := s.gateway.UpdateGatewayURL(s.ctx, writer, "https://other.test")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	err = s.gateway.UpdateGatewayURL(s.ctx, registryOwner, "not a url")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.gateway.UpdateGatewayURL(s.ctx, registryOwner, "https://other.test/v2"))
	desc := s.gateway.Addr(s.ctx, node, domain.CoinTypeETH)
	s.Equal([]string{"https://other.test/v2/{sender}/{data}.json"}, desc.URLs)

	updates := s.sink.ByType(events.TypeGatewayURLUpdated)
	s.Require().Len(updates, 1)
	s.Equal("https://other.test/v2", updates[0].URL)
}
