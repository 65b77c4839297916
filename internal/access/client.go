package access

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config holds directory client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	MaxTries uint
}

// DefaultConfig returns a default directory client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:  30 * time.Second,
		MaxTries: 3,
	}
}

// Client calls the organisation directory over HTTP. Transient failures are
// retried with exponential backoff; the retry policy lives here, in the
// collaborator client, not in the resolver.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
}

var _ Directory = (*Client)(nil)

// NewClient creates a directory client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxTries:   cfg.MaxTries,
	}
}

// AccessibleOrganisations returns the organisations visible to the user.
func (c *Client) AccessibleOrganisations(ctx context.Context, userID string) ([]Organisation, error) {
	return getJSON[[]Organisation](ctx, c, "/api/access/getAccessibleOrganisations/"+url.PathEscape(userID))
}

// FullOrganisationsTree returns the full organisation tree for the user.
func (c *Client) FullOrganisationsTree(ctx context.Context, userID string) ([]Organisation, error) {
	return getJSON[[]Organisation](ctx, c, "/api/access/getFullOrganisationsTree/"+url.PathEscape(userID))
}

// UsersByOrganisationID returns the members of one organisation.
func (c *Client) UsersByOrganisationID(ctx context.Context, orgID string, includeDetails bool) ([]User, error) {
	path := fmt.Sprintf("/api/access/getUsersByOrganisationId/%s?includeDetails=%t",
		url.PathEscape(orgID), includeDetails)
	return getJSON[[]User](ctx, c, path)
}

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	operation := func() (T, error) {
		var zero T

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return zero, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return zero, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return zero, fmt.Errorf("directory returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return zero, backoff.Permanent(fmt.Errorf("directory returned status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return zero, err
		}

		var out T
		if err := json.Unmarshal(body, &out); err != nil {
			return zero, backoff.Permanent(fmt.Errorf("failed to decode directory response: %w", err))
		}
		return out, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
}
