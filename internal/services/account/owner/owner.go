// Package owner resolves account owners against the customer service.
package owner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/platform/timeouts"
)

// ErrOwnerNotFound indicates the customer service has no such owner.
var ErrOwnerNotFound = apperrors.New(apperrors.CodeOwnerNotFound, "owner not found")

// Owner is the subset of a customer record the account service needs.
type Owner struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// Lookup resolves an owner by id.
type Lookup interface {
	GetOwner(ctx context.Context, id string) (Owner, error)
}

// HTTPClient looks owners up with GET {base}/bank/customers/get/{id}.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds a customer service client. A zero timeout uses 5s.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("owner service base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse owner service base url: %w", err)
	}
	if timeout <= 0 {
		timeout = timeouts.OwnerLookup
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// GetOwner fetches the owner with id. A 404 maps to ErrOwnerNotFound.
func (c *HTTPClient) GetOwner(ctx context.Context, id string) (Owner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}, ErrOwnerNotFound
	}
	if c == nil || c.httpClient == nil {
		return Owner{}, errors.New("owner client is not configured")
	}

	endpoint := c.baseURL + "/bank/customers/get/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Owner{}, fmt.Errorf("build owner request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Owner{}, fmt.Errorf("call owner service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Owner{}, ErrOwnerNotFound
	case resp.StatusCode != http.StatusOK:
		return Owner{}, fmt.Errorf("owner service status %d", resp.StatusCode)
	}

	var payload Owner
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Owner{}, fmt.Errorf("decode owner response: %w", err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return Owner{}, ErrOwnerNotFound
	}
	return payload, nil
}

// Static is an in-memory Lookup for local runs and tests.
type Static struct {
	mu     sync.RWMutex
	owners map[string]Owner
}

// NewStatic returns a lookup that knows the given owner ids.
func NewStatic(ids ...string) *Static {
	s := &Static{owners: make(map[string]Owner, len(ids))}
	for _, id := range ids {
		s.Add(Owner{ID: id})
	}
	return s
}

// Add registers an owner.
func (s *Static) Add(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.ID] = o
}

// GetOwner returns a registered owner or ErrOwnerNotFound.
func (s *Static) GetOwner(ctx context.Context, id string) (Owner, error) {
	if err := ctx.Err(); err != nil {
		return Owner{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[strings.TrimSpace(id)]
	if !ok {
		return Owner{}, ErrOwnerNotFound
	}
	return o, nil
}
