// Package signature builds and checks the proofs that carry off-ledger
// answers back into the registry.
//
// The same code runs on both sides of the protocol: the gateway signs with
// Sign and EncodeResponse, the registry checks with Verify. The hash is
//
//	keccak256(0x19 || 0x00 || target || uint64be(expires) || keccak256(request) || keccak256(result))
//
// where target is the address of the resolver instance the answer is for.
package signature

import (
	"crypto/ecdsa"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	dErrors "phonelease/pkg/domain-errors"
)

// Length of an r || s || v signature.
const Length = 65

var responseArgs = mustArguments("bytes", "uint64", "bytes")

// SignedResponse is what an off-ledger source returns: the answer, the
// unix-seconds deadline after which it must be rejected, and the proof.
type SignedResponse struct {
	Result    []byte
	Expires   uint64
	Signature []byte
}

// MakeSignatureHash returns the canonical, order-sensitive hash over the
// four signed fields.
func MakeSignatureHash(target common.Address, expires uint64, request, result []byte) common.Hash {
	var expiresBE [8]byte
	binary.BigEndian.PutUint64(expiresBE[:], expires)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{0x19, 0x00})
	h.Write(target.Bytes())
	h.Write(expiresBE[:])
	h.Write(keccak(request))
	h.Write(keccak(result))

	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Sign produces a 65-byte signature with v in {27, 28}.
func Sign(key *ecdsa.PrivateKey, target common.Address, expires uint64, request, result []byte) ([]byte, error) {
	hash := MakeSignatureHash(target, expires, request, result)
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// EncodeResponse packs a signed response as (bytes result, uint64 expires, bytes signature).
func EncodeResponse(resp SignedResponse) ([]byte, error) {
	return responseArgs.Pack(nonNil(resp.Result), resp.Expires, nonNil(resp.Signature))
}

// DecodeResponse unpacks bytes produced by EncodeResponse.
func DecodeResponse(data []byte) (SignedResponse, error) {
	values, err := responseArgs.Unpack(data)
	if err != nil {
		return SignedResponse{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed signed response")
	}
	result, ok1 := values[0].([]byte)
	expires, ok2 := values[1].(uint64)
	sig, ok3 := values[2].([]byte)
	if !ok1 || !ok2 || !ok3 {
		return SignedResponse{}, dErrors.New(dErrors.CodeValidation, "malformed signed response")
	}
	return SignedResponse{Result: result, Expires: expires, Signature: sig}, nil
}

// Verify decodes response, rejects it if expired at now, and recovers the
// signer over MakeSignatureHash(target, expires, request, result).
//
// Verify does not decide whether the signer is trusted; callers compare the
// returned address against their configured signer.
func Verify(target common.Address, now time.Time, request, response []byte) (common.Address, []byte, error) {
	resp, err := DecodeResponse(response)
	if err != nil {
		return common.Address{}, nil, err
	}
	if resp.Expires <= uint64(max(now.Unix(), 0)) {
		return common.Address{}, nil, dErrors.New(dErrors.CodeExpired, "signed response has expired")
	}
	signer, err := Recover(MakeSignatureHash(target, resp.Expires, request, resp.Result), resp.Signature)
	if err != nil {
		return common.Address{}, nil, err
	}
	return signer, resp.Result, nil
}

// Recover returns the address that produced sig over hash. Both v encodings
// (0/1 and 27/28) are accepted.
func Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != Length {
		return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "signature must be 65 bytes")
	}
	normalized := make([]byte, Length)
	copy(normalized, sig)
	if v := normalized[crypto.RecoveryIDOffset]; v == 27 || v == 28 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "signature recovery failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func keccak(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
