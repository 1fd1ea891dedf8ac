package models

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

// Selector is the first four bytes of keccak256 over a function signature.
type Selector [4]byte

func NewSelector(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

func (s Selector) Bytes() []byte {
	return s[:]
}

var (
	SelectorAddr             = NewSelector("addr(bytes32,uint256)")
	SelectorSetAddr          = NewSelector("setAddr(bytes32,uint256,bytes,address)")
	SelectorResolve          = NewSelector("resolve(bytes,bytes)")
	SelectorResolveWithProof = NewSelector("resolveWithProof(bytes,bytes)")
)

var (
	addrArgs    = arguments("bytes32", "uint256")
	setAddrArgs = arguments("bytes32", "uint256", "bytes", "address")
	resolveArgs = arguments("bytes", "bytes")
)

// Op is the kind of inner request.
type Op string

const (
	OpAddr    Op = "addr"
	OpSetAddr Op = "setAddr"
)

// Request is a decoded inner request.
type Request struct {
	Op       Op
	Node     domain.Node
	CoinType uint64
	// Value and Sender are set for OpSetAddr only.
	Value  []byte
	Sender domain.Identity
}

// EncodeAddr builds addr(node, coinType).
func EncodeAddr(node domain.Node, coinType uint64) []byte {
	packed, err := addrArgs.Pack([32]byte(node), new(big.Int).SetUint64(coinType))
	if err != nil {
		panic(err)
	}
	return append(SelectorAddr.Bytes(), packed...)
}

// EncodeSetAddr builds setAddr(node, coinType, value, sender).
func EncodeSetAddr(node domain.Node, coinType uint64, value []byte, sender domain.Identity) []byte {
	if value == nil {
		value = []byte{}
	}
	packed, err := setAddrArgs.Pack([32]byte(node), new(big.Int).SetUint64(coinType), value, common.Address(sender))
	if err != nil {
		panic(err)
	}
	return append(SelectorSetAddr.Bytes(), packed...)
}

// DecodeRequest parses an addr or setAddr request.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) < 4 {
		return nil, dErrors.New(dErrors.CodeValidation, "request is shorter than a selector")
	}
	var sel Selector
	copy(sel[:], data[:4])
	switch sel {
	case SelectorAddr:
		values, err := addrArgs.Unpack(data[4:])
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed addr request")
		}
		node, coinType, err := nodeAndCoin(values)
		if err != nil {
			return nil, err
		}
		return &Request{Op: OpAddr, Node: node, CoinType: coinType}, nil
	case SelectorSetAddr:
		values, err := setAddrArgs.Unpack(data[4:])
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed setAddr request")
		}
		node, coinType, err := nodeAndCoin(values)
		if err != nil {
			return nil, err
		}
		value, ok1 := values[2].([]byte)
		sender, ok2 := values[3].(common.Address)
		if !ok1 || !ok2 {
			return nil, dErrors.New(dErrors.CodeValidation, "malformed setAddr request")
		}
		return &Request{Op: OpSetAddr, Node: node, CoinType: coinType, Value: value, Sender: sender}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported request selector")
	}
}

// IsWrite reports whether data is a setAddr request.
func IsWrite(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], SelectorSetAddr.Bytes())
}

// EncodeResolveCall builds resolve(name, data), the call the descriptor
// carries and the proof is bound to.
func EncodeResolveCall(name, data []byte) []byte {
	if name == nil {
		name = []byte{}
	}
	if data == nil {
		data = []byte{}
	}
	packed, err := resolveArgs.Pack(name, data)
	if err != nil {
		panic(err)
	}
	return append(SelectorResolve.Bytes(), packed...)
}

// DecodeResolveCall returns the name and inner request of a resolve call.
func DecodeResolveCall(call []byte) (name, data []byte, err error) {
	if len(call) < 4 || !bytes.Equal(call[:4], SelectorResolve.Bytes()) {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "not a resolve call")
	}
	values, err := resolveArgs.Unpack(call[4:])
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed resolve call")
	}
	name, ok1 := values[0].([]byte)
	data, ok2 := values[1].([]byte)
	if !ok1 || !ok2 {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "malformed resolve call")
	}
	return name, data, nil
}

func nodeAndCoin(values []any) (domain.Node, uint64, error) {
	node, ok1 := values[0].([32]byte)
	coin, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return domain.Node{}, 0, dErrors.New(dErrors.CodeValidation, "malformed node or coin type")
	}
	if !coin.IsUint64() {
		return domain.Node{}, 0, dErrors.New(dErrors.CodeValidation, "coin type out of range")
	}
	return domain.Node(node), coin.Uint64(), nil
}

func arguments(types ...string) abi.Arguments {
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
