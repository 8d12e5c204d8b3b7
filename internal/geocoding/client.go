package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wprdc/asset-registry/internal/config"
)

// Client wraps the Google Maps Geocoding API behind the one contract the
// registry needs: address string in, coordinates out.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

// NewClient returns nil when geocoding is disabled or unconfigured
// (graceful degradation; callers nil-check).
func NewClient(cfg config.Geocoding) *Client {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
	Status  string          `json:"status"`
}

type geocodeResult struct {
	Geometry geometry `json:"geometry"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocode converts a free-form address string into coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (float64, float64, error) {
	u := fmt.Sprintf("https://maps.googleapis.com/maps/api/geocode/json?address=%s&key=%s",
		url.QueryEscape(address), c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding API returned HTTP %d", resp.StatusCode)
	}

	var geoResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return 0, 0, fmt.Errorf("decoding response: %w", err)
	}

	if geoResp.Status != "OK" {
		return 0, 0, fmt.Errorf("geocoding failed: status=%s", geoResp.Status)
	}
	if len(geoResp.Results) == 0 {
		return 0, 0, fmt.Errorf("geocoding returned no results for address")
	}

	loc := geoResp.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}
