package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"phonelease/pkg/requestcontext"
)

// HTTPTreasury pushes collected fees to a remote receive endpoint.
type HTTPTreasury struct {
	url    string
	client *http.Client
}

func NewHTTPTreasury(url string, timeout time.Duration) *HTTPTreasury {
	return &HTTPTreasury{url: url, client: &http.Client{Timeout: timeout}}
}

type collectRequest struct {
	Amount    string `json:"amount"`
	RequestID string `json:"request_id,omitempty"`
}

// Collect POSTs the amount; any non-2xx response is a failed transfer.
func (t *HTTPTreasury) Collect(ctx context.Context, amount *big.Int) error {
	body, err := json.Marshal(collectRequest{Amount: amount.String(), RequestID: requestcontext.RequestID(ctx)})
	if err != nil {
		return fmt.Errorf("encode treasury request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build treasury request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to treasury: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: treasury responded %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
