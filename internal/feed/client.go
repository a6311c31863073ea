// Package feed fetches the upstream listings payload and normalizes its
// records at the boundary.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Client pulls the raw listing sequence from the remote JSON API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchListings downloads and decodes the feed. Three payload shapes are
// tolerated: {"data": [...]}, a wrapper object under any key whose first
// element looks like a listing, and a bare top-level array. A fetch or
// decode failure is fatal for the run.
func (c *Client) FetchListings(ctx context.Context) ([]RawListing, error) {
	endpoint := c.baseURL
	if c.apiKey != "" {
		sep := "?"
		if u, err := url.Parse(endpoint); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		endpoint += sep + "api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "orbisync/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	listings, err := decodePayload(body)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(listings)).Info("Fetched listings from feed")
	return listings, nil
}

func decodePayload(body []byte) ([]RawListing, error) {
	// Bare top-level array.
	var direct []RawListing
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	// Preferred wrapper key.
	if data, ok := wrapper["data"]; ok {
		var listings []RawListing
		if err := json.Unmarshal(data, &listings); err == nil {
			return listings, nil
		}
	}

	// Any other key holding an array whose first element carries a
	// reference-like field.
	for _, data := range wrapper {
		var listings []RawListing
		if err := json.Unmarshal(data, &listings); err != nil {
			continue
		}
		if len(listings) == 0 {
			continue
		}
		if looksLikeListing(listings[0]) {
			return listings, nil
		}
	}

	return nil, fmt.Errorf("feed response contains no recognizable listing array")
}

func looksLikeListing(raw RawListing) bool {
	for _, key := range []string{"ref", "referencia", "id", "sync_code", "codigo_consignacion_sincronizacion"} {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	return false
}
