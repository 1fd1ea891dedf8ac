package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
)

// RegistryAdapter answers lease ownership by asking the registry API. The
// gateway runs as its own process so it cannot read the lease store.
type RegistryAdapter struct {
	baseURL string
	http    *http.Client
}

func NewRegistryAdapter(baseURL string, timeout time.Duration) *RegistryAdapter {
	return &RegistryAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// CanModify reports whether actor owns the lease on id. An unknown lease is
// not an error.
func (a *RegistryAdapter) CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error) {
	if actor == domain.ZeroIdentity {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/leases/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return false, fmt.Errorf("build lease request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch lease: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("fetch lease: registry answered %d", resp.StatusCode)
	}
	var lease models.LeaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&lease); err != nil {
		return false, fmt.Errorf("decode lease: %w", err)
	}
	owner, err := domain.ParseIdentity(lease.Owner)
	if err != nil {
		return false, fmt.Errorf("lease owner: %w", err)
	}
	return owner == actor, nil
}
