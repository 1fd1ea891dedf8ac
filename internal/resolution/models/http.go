package models

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

// DescriptorResponse is the JSON form of a LookupDescriptor.
type DescriptorResponse struct {
	Sender           string   `json:"sender"`
	URLs             []string `json:"urls"`
	CallData         string   `json:"call_data"`
	CallbackFunction string   `json:"callback_function"`
	ExtraData        string   `json:"extra_data"`
}

func NewDescriptorResponse(d *LookupDescriptor) *DescriptorResponse {
	if d == nil {
		return nil
	}
	return &DescriptorResponse{
		Sender:           d.Sender.Hex(),
		URLs:             d.URLs,
		CallData:         hexutil.Encode(d.CallData),
		CallbackFunction: hexutil.Encode(d.CallbackSelector.Bytes()),
		ExtraData:        hexutil.Encode(d.ExtraData),
	}
}

// ResolveRequest begins a resolution for a raw inner request.
type ResolveRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`

	name []byte
	data []byte
}

func (r *ResolveRequest) Validate() error {
	var err error
	if r.name, err = decodeHex(r.Name, "name", true); err != nil {
		return err
	}
	if r.data, err = decodeHex(r.Data, "data", false); err != nil {
		return err
	}
	return nil
}

func (r *ResolveRequest) ParsedName() []byte {
	return r.name
}

func (r *ResolveRequest) ParsedData() []byte {
	return r.data
}

// SetAddrRequest asks for a write of value under the path's node and coin.
type SetAddrRequest struct {
	Value string `json:"value"`

	value []byte
}

func (r *SetAddrRequest) Validate() error {
	v, err := decodeHex(r.Value, "value", false)
	if err != nil {
		return err
	}
	r.value = v
	return nil
}

func (r *SetAddrRequest) ParsedValue() []byte {
	return r.value
}

// CallbackRequest resubmits the gateway's signed answer.
type CallbackRequest struct {
	Response  string `json:"response"`
	ExtraData string `json:"extra_data"`

	response  []byte
	extraData []byte
}

func (r *CallbackRequest) Validate() error {
	var err error
	if r.response, err = decodeHex(r.Response, "response", false); err != nil {
		return err
	}
	if r.extraData, err = decodeHex(r.ExtraData, "extra_data", false); err != nil {
		return err
	}
	return nil
}

func (r *CallbackRequest) ParsedResponse() []byte {
	return r.response
}

func (r *CallbackRequest) ParsedExtraData() []byte {
	return r.extraData
}

// ResultResponse carries verified result bytes back to the caller.
type ResultResponse struct {
	Result string `json:"result"`
	Signer string `json:"signer"`
}

// ParseCoinType reads a decimal coin type from a path segment.
func ParseCoinType(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "coin type must be a non-negative integer")
	}
	return v, nil
}

// ParseNodeOrIdentifier accepts either a 0x node or an identifier, which is
// hashed to its node.
func ParseNodeOrIdentifier(raw string) (domain.Node, error) {
	if id, err := domain.ParseIdentifier(raw); err == nil {
		return id.Node(), nil
	}
	return domain.ParseNode(raw)
}

func decodeHex(raw, field string, allowEmpty bool) ([]byte, error) {
	if raw == "" || raw == "0x" {
		if allowEmpty {
			return []byte{}, nil
		}
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be 0x-prefixed hex", field)
	}
	return b, nil
}

// UpdateSignerRequest replaces the trusted signer.
type UpdateSignerRequest struct {
	Signer string `json:"signer"`

	signer domain.Identity
}

func (r *UpdateSignerRequest) Validate() error {
	id, err := domain.ParseIdentity(r.Signer)
	if err != nil {
		return err
	}
	r.signer = id
	return nil
}

func (r *UpdateSignerRequest) ParsedSigner() domain.Identity {
	return r.signer
}

// UpdateGatewayURLRequest replaces the gateway base URL.
type UpdateGatewayURLRequest struct {
	URL string `json:"url"`
}

func (r *UpdateGatewayURLRequest) Validate() error {
	if r.URL == "" {
		return dErrors.New(dErrors.CodeValidation, "url is required")
	}
	return nil
}

// ResolverResponse reports the resolver configuration.
type ResolverResponse struct {
	Target     string `json:"target"`
	Signer     string `json:"signer"`
	GatewayURL string `json:"gateway_url"`
}
