package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	offchain "phonelease/internal/offchain/handler"
	resolution "phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
)

// APIError is a non-2xx answer from the registry or the gateway.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Description)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// Client talks to the registry API and follows lookup descriptors to the
// gateway they name.
type Client struct {
	registry string
	token    string
	http     *http.Client
}

func NewClient(opts *RootOptions) *Client {
	return &Client{
		registry: strings.TrimRight(opts.Registry, "/"),
		token:    opts.Token,
		http:     &http.Client{Timeout: opts.Timeout},
	}
}

// Get calls a registry route under /v1.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, c.registry+"/v1"+path, nil, out, false)
}

// GetAuthenticated calls a registry route under /v1 that needs --token.
func (c *Client) GetAuthenticated(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, c.registry+"/v1"+path, nil, out, true)
}

// Post calls an authenticated registry route under /v1.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.registry+"/v1"+path, body, out, true)
}

// Resolve runs the second half of a deferred lookup: it fetches the signed
// answer from the first gateway URL that responds and submits it to the
// callback. Gateways are tried in order.
func (c *Client) Resolve(ctx context.Context, desc *resolution.DescriptorResponse, trace func(string, ...any)) (*resolution.ResultResponse, error) {
	sender, err := domain.ParseIdentity(desc.Sender)
	if err != nil {
		return nil, fmt.Errorf("descriptor sender: %w", err)
	}
	callData, err := hexutil.Decode(desc.CallData)
	if err != nil {
		return nil, fmt.Errorf("descriptor call data: %w", err)
	}
	if len(desc.URLs) == 0 {
		return nil, fmt.Errorf("descriptor carries no gateway urls")
	}

	var answer offchain.LookupResponse
	for i, template := range desc.URLs {
		url, inPath := resolution.ExpandURL(template, sender, callData)
		if inPath {
			trace("GET %s", url)
			err = c.do(ctx, http.MethodGet, url, nil, &answer, false)
		} else {
			trace("POST %s", url)
			body := offchain.WriteRequest{Sender: strings.ToLower(sender.Hex()), Data: desc.CallData}
			err = c.do(ctx, http.MethodPost, url, body, &answer, true)
		}
		if err == nil {
			break
		}
		if i == len(desc.URLs)-1 {
			return nil, err
		}
		trace("gateway failed, trying next: %v", err)
	}

	var result resolution.ResultResponse
	trace("POST %s/v1/resolve/callback", c.registry)
	err = c.do(ctx, http.MethodPost, c.registry+"/v1/resolve/callback", resolution.CallbackRequest{
		Response:  answer.Data,
		ExtraData: desc.ExtraData,
	}, &result, false)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return WrapExitError(ExitCommandError, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if c.token == "" {
			return NewExitError(ExitCommandError, "this command needs --token")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return WrapExitError(ExitCommandError, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var envelope httputil.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error != "" {
			apiErr.Code, apiErr.Description = envelope.Error, envelope.ErrorDescription
		}
		return WrapExitError(ExitFailure, method+" "+url, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WrapExitError(ExitFailure, "decode response", err)
	}
	return nil
}
