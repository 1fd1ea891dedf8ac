package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// URL placeholders substituted by the client performing the fetch.
const (
	PlaceholderSender = "{sender}"
	PlaceholderData   = "{data}"
)

// LookupDescriptor is returned by the first phase of a resolution. The
// client fetches one of URLs, then submits the gateway's answer together
// with ExtraData to the callback.
type LookupDescriptor struct {
	Sender           common.Address
	URLs             []string
	CallData         []byte
	CallbackSelector Selector
	ExtraData        []byte
}

// ReadURL is the template for reads: the whole request is in the path.
func ReadURL(gatewayURL string) string {
	return strings.TrimRight(gatewayURL, "/") + "/" + PlaceholderSender + "/" + PlaceholderData + ".json"
}

// WriteURL is the template for writes: the request travels in the body.
func WriteURL(gatewayURL string) string {
	return strings.TrimRight(gatewayURL, "/") + "/" + PlaceholderSender + ".json"
}

// ExpandURL substitutes the placeholders. It reports whether the template
// carries the data in the path (GET) or expects it in a POST body.
func ExpandURL(template string, sender common.Address, callData []byte) (url string, inPath bool) {
	inPath = strings.Contains(template, PlaceholderData)
	url = strings.ReplaceAll(template, PlaceholderSender, strings.ToLower(sender.Hex()))
	url = strings.ReplaceAll(url, PlaceholderData, hexutil.Encode(callData))
	return url, inPath
}
