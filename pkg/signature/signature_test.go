package signature

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "phonelease/pkg/domain-errors"
)

type SignatureSuite struct {
	suite.Suite
	target  common.Address
	signer  common.Address
	now     time.Time
	request []byte
	result  []byte
	sign    func(expires uint64, request, result []byte) []byte
}

func TestSignatureSuite(t *testing.T) {
	suite.Run(t, new(SignatureSuite))
}

func (s *SignatureSuite) SetupTest() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)

	s.target = common.HexToAddress("0x000000000000000000000000000000000000beef")
	s.signer = crypto.PubkeyToAddress(key.PublicKey)
	s.now = time.Unix(1_800_000_000, 0)
	s.request = []byte("resolve(+15555550100)")
	s.result = common.LeftPadBytes([]byte{0xaa}, 32)
	s.sign = func(expires uint64, request, result []byte) []byte {
		sig, err := Sign(key, s.target, expires, request, result)
		s.Require().NoError(err)
		return sig
	}
}

func (s *SignatureSuite) encode(expires uint64, result, sig []byte) []byte {
	resp, err := EncodeResponse(SignedResponse{Result: result, Expires: expires, Signature: sig})
	s.Require().NoError(err)
	return resp
}

func (s *SignatureSuite) TestRoundTrip() {
	expires := uint64(s.now.Add(5 * time.Minute).Unix())
	resp := s.encode(expires, s.result, s.sign(expires, s.request, s.result))

	signer, result, err := Verify(s.target, s.now, s.request, resp)
	s.Require().NoError(err)
	s.Equal(s.signer, signer)
	s.Equal(s.result, result)
}

func (s *SignatureSuite) TestExpiry() {
	s.Run("expiry equal to now is rejected", func() {
		expires := uint64(s.now.Unix())
		resp := s.encode(expires, s.result, s.sign(expires, s.request, s.result))

		_, _, err := Verify(s.target, s.now, s.request, resp)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Run("expiry in the past is rejected", func() {
		expires := uint64(s.now.Add(-time.Second).Unix())
		resp := s.encode(expires, s.result, s.sign(expires, s.request, s.result))

		_, _, err := Verify(s.target, s.now, s.request, resp)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *SignatureSuite) TestTampering() {
	expires := uint64(s.now.Add(time.Minute).Unix())
	sig := s.sign(expires, s.request, s.result)

	s.Run("tampered result recovers a different signer", func() {
		tampered := common.LeftPadBytes([]byte{0xbb}, 32)
		signer, _, err := Verify(s.target, s.now, s.request, s.encode(expires, tampered, sig))
		s.Require().NoError(err)
		s.NotEqual(s.signer, signer)
	})

	s.Run("different request recovers a different signer", func() {
		signer, _, err := Verify(s.target, s.now, []byte("other request"), s.encode(expires, s.result, sig))
		s.Require().NoError(err)
		s.NotEqual(s.signer, signer)
	})

	s.Run("different target recovers a different signer", func() {
		other := common.HexToAddress("0x000000000000000000000000000000000000cafe")
		signer, _, err := Verify(other, s.now, s.request, s.encode(expires, s.result, sig))
		s.Require().NoError(err)
		s.NotEqual(s.signer, signer)
	})

	s.Run("extended expiry recovers a different signer", func() {
		signer, _, err := Verify(s.target, s.now, s.request, s.encode(expires+3600, s.result, sig))
		s.Require().NoError(err)
		s.NotEqual(s.signer, signer)
	})

	s.Run("short signature is rejected", func() {
		_, _, err := Verify(s.target, s.now, s.request, s.encode(expires, s.result, sig[:64]))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *SignatureSuite) TestMalformedResponse() {
	_, _, err := Verify(s.target, s.now, s.request, []byte{0x01, 0x02})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRecoverAcceptsBothRecoveryEncodings(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := MakeSignatureHash(common.Address{}, 1, nil, nil)

	raw, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	got, err := Recover(hash, raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	shifted := append([]byte(nil), raw...)
	shifted[crypto.RecoveryIDOffset] += 27
	got, err = Recover(hash, shifted)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMakeSignatureHashIsOrderSensitive(t *testing.T) {
	target := common.HexToAddress("0x0000000000000000000000000000000000000001")
	a := MakeSignatureHash(target, 10, []byte("x"), []byte("y"))
	b := MakeSignatureHash(target, 10, []byte("y"), []byte("x"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, MakeSignatureHash(target, 10, []byte("x"), []byte("y")))
}

func TestResponseCodec(t *testing.T) {
	in := SignedResponse{Result: []byte{1, 2, 3}, Expires: 42, Signature: make([]byte, Length)}
	encoded, err := EncodeResponse(in)
	require.NoError(t, err)

	out, err := DecodeResponse(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
