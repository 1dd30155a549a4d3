// Package transit is the REST client for the external journey planner. The
// engine only consumes its duration: given home, venue, and a target arrival
// time it answers with minutes of public-transit travel or "unavailable".
package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// Client implements domain.TravelTimePlanner against an HTTP journey API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a journey-planner client. baseURL is the API root, e.g.
// "https://transit.example.org/v1".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiJourney is the subset of the planner response the engine reads.
type apiJourney struct {
	Reachable       bool `json:"reachable"`
	DurationMinutes int  `json:"durationMinutes"`
}

// PlanJourney returns the transit duration in minutes from home to venue
// arriving by the given time. Unreachable journeys and any transport failure
// surface as domain.ErrUnavailable; callers treat both identically.
func (c *Client) PlanJourney(ctx context.Context, home, venue domain.Coord, arriveBy time.Time) (int, error) {
	q := url.Values{}
	q.Set("fromLat", strconv.FormatFloat(home.Lat, 'f', 6, 64))
	q.Set("fromLng", strconv.FormatFloat(home.Lng, 'f', 6, 64))
	q.Set("toLat", strconv.FormatFloat(venue.Lat, 'f', 6, 64))
	q.Set("toLng", strconv.FormatFloat(venue.Lng, 'f', 6, 64))
	q.Set("arriveBy", arriveBy.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/journey?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("transit: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: planner status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", domain.ErrUnavailable, err)
	}

	var journey apiJourney
	if err := json.Unmarshal(body, &journey); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", domain.ErrUnavailable, err)
	}
	if !journey.Reachable {
		return 0, domain.ErrUnavailable
	}

	return journey.DurationMinutes, nil
}

// Compile-time interface check.
var _ domain.TravelTimePlanner = (*Client)(nil)
