// Package refbase is the REST client for the system of record holding the
// exchange pool, the mutation endpoints, and the user's own convocations.
package refbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// Client is the HTTP JSON client for the refbase API. All mutations carry an
// idempotency key header; the server deduplicates repeated delivery of the
// same key, which makes offline replay safe.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *HMACAuth
	bearer     string
}

// NewClient creates a refbase client.
//
// baseURL is the API root, e.g. "https://refbase.example.org/api/v1".
// bearer is the signed-in user's session token; auth signs each request on
// behalf of the registered API client.
func NewClient(baseURL, bearer string, auth *HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth:   auth,
		bearer: bearer,
	}
}

// ListExchanges fetches the pool for one tab.
func (c *Client) ListExchanges(ctx context.Context, tab domain.Tab) ([]domain.Exchange, error) {
	status := "open"
	if tab == domain.TabMine {
		status = "mine"
	}
	path := "/exchanges?status=" + status

	respBody, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, fmt.Errorf("refbase: list exchanges: %w", err)
	}

	var apiExchanges []APIExchange
	if err := json.Unmarshal(respBody, &apiExchanges); err != nil {
		return nil, fmt.Errorf("refbase: decode exchanges: %w", err)
	}

	out := make([]domain.Exchange, 0, len(apiExchanges))
	for _, a := range apiExchanges {
		out = append(out, a.ToDomain())
	}
	return out, nil
}

// Apply applies for an open exchange on behalf of the signed-in referee.
func (c *Client) Apply(ctx context.Context, exchangeID, attemptToken string) error {
	path := fmt.Sprintf("/exchanges/%s/application", exchangeID)

	if _, err := c.do(ctx, http.MethodPost, path, nil, attemptToken); err != nil {
		return fmt.Errorf("refbase: apply for exchange %s: %w", exchangeID, err)
	}
	return nil
}

// Withdraw retracts the signed-in referee's pending application.
func (c *Client) Withdraw(ctx context.Context, exchangeID, attemptToken string) error {
	path := fmt.Sprintf("/exchanges/%s/application", exchangeID)

	if _, err := c.do(ctx, http.MethodDelete, path, nil, attemptToken); err != nil {
		return fmt.Errorf("refbase: withdraw from exchange %s: %w", exchangeID, err)
	}
	return nil
}

// RemoveConvocation cancels the referee's own posting through its underlying
// convocation record.
func (c *Client) RemoveConvocation(ctx context.Context, convocationID, attemptToken string) error {
	path := fmt.Sprintf("/convocations/%s/exchange", convocationID)

	if _, err := c.do(ctx, http.MethodDelete, path, nil, attemptToken); err != nil {
		return fmt.Errorf("refbase: remove convocation %s: %w", convocationID, err)
	}
	return nil
}

// ListAssignments fetches the signed-in referee's confirmed convocations.
func (c *Client) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/convocations", nil, "")
	if err != nil {
		return nil, fmt.Errorf("refbase: list assignments: %w", err)
	}

	var apiConvocations []APIConvocation
	if err := json.Unmarshal(respBody, &apiConvocations); err != nil {
		return nil, fmt.Errorf("refbase: decode convocations: %w", err)
	}

	out := make([]domain.Assignment, 0, len(apiConvocations))
	for _, a := range apiConvocations {
		out = append(out, a.ToDomain())
	}
	return out, nil
}

// Health probes the refbase health endpoint. A transport-level failure is
// reported as domain.ErrOffline so the connectivity monitor can key off it.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, ""); err != nil {
		return err
	}
	return nil
}

// do performs an authenticated request and returns the response body.
// Transport-level failures (DNS, refused connection, timeout) are wrapped in
// domain.ErrOffline; HTTP-level failures keep their status for the caller.
func (c *Client) do(ctx context.Context, method, path string, body any, attemptToken string) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if attemptToken != "" {
		req.Header.Set("X-Idempotency-Key", attemptToken)
	}
	if c.auth != nil {
		for k, v := range c.auth.Headers(method, path, string(payload)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTransportError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrOffline, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return nil, domain.ErrAlreadyExists
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}
}

// isTransportError classifies failures that mean the system of record is
// unreachable rather than rejecting the request.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
