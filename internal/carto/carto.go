package carto

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wprdc/asset-registry/internal/assets"
	"github.com/wprdc/asset-registry/internal/config"
	"github.com/wprdc/asset-registry/internal/metrics"
)

// Client talks to the Carto SQL API. The table holds one row per asset id
// with the handful of fields the public map needs.
type Client struct {
	cfg        config.Carto
	httpClient *http.Client
}

// NewClient returns nil when Carto sync is unconfigured; callers nil-check.
func NewClient(cfg config.Carto) *Client {
	if cfg.APIKey == "" || cfg.Username == "" || cfg.Table == "" {
		return nil
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sqlResponse struct {
	Rows         []map[string]any `json:"rows"`
	TotalRows    *int             `json:"total_rows"`
	AffectedRows *int             `json:"affected_rows,omitempty"`
	Error        []string         `json:"error,omitempty"`
}

func (c *Client) runSQL(ctx context.Context, q string) (*sqlResponse, error) {
	endpoint := fmt.Sprintf("https://%s.carto.com/api/v2/sql", c.cfg.Username)

	form := url.Values{}
	form.Set("q", q)
	form.Set("api_key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carto request: %w", err)
	}
	defer resp.Body.Close()

	var out sqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding carto response (HTTP %d): %w", resp.StatusCode, err)
	}
	if len(out.Error) > 0 {
		return nil, fmt.Errorf("carto error: %s", strings.Join(out.Error, "; "))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carto returned HTTP %d", resp.StatusCode)
	}
	return &out, nil
}

func sqlString(p *string) string {
	if p == nil {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(*p, "'", "''") + "'"
}

func sqlBool(p *bool) string {
	if p == nil {
		return "NULL"
	}
	return fmt.Sprint(*p)
}

func sqlFloat(p *float64) string {
	if p == nil {
		return "NULL"
	}
	return fmt.Sprint(*p)
}

// Upsert pushes the map-facing fields for one asset id, idempotently, and
// returns how many rows were written.
func (c *Client) Upsert(ctx context.Context, assetID uint, fields map[string]string) (int, error) {
	var cols, vals []string
	for col, val := range fields {
		cols = append(cols, col)
		vals = append(vals, val)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE asset_id = %d", c.cfg.Table, assetID)
	ins := fmt.Sprintf("INSERT INTO %s (asset_id, %s) VALUES (%d, %s)",
		c.cfg.Table, strings.Join(cols, ", "), assetID, strings.Join(vals, ", "))

	if _, err := c.runSQL(ctx, del); err != nil {
		return 0, err
	}
	resp, err := c.runSQL(ctx, ins)
	if err != nil {
		return 0, err
	}
	if resp.AffectedRows != nil {
		return *resp.AffectedRows, nil
	}
	return 1, nil
}

// FixGeoFields recomputes the_geom for one asset row from its
// latitude/longitude columns; called after any successful push.
func (c *Client) FixGeoFields(ctx context.Context, assetID uint) error {
	q := fmt.Sprintf(
		"UPDATE %s SET the_geom = CDB_LatLng(latitude, longitude) WHERE asset_id = %d AND latitude IS NOT NULL AND longitude IS NOT NULL",
		c.cfg.Table, assetID)
	_, err := c.runSQL(ctx, q)
	return err
}

// Init subscribes the sync to asset saves. Keeping the subscription here,
// rather than inside the persistence path, means a Carto outage can never
// block a save.
func Init(cfg config.Carto) *Client {
	client := NewClient(cfg)
	if client == nil {
		log.Println("Carto sync disabled (missing configuration)")
		return nil
	}

	assets.OnAssetSaved(func(a *assets.Asset) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fields := map[string]string{
			"name":           sqlString(&a.Name),
			"do_not_display": sqlBool(a.DoNotDisplay),
		}
		if a.Location != nil {
			fields["latitude"] = sqlFloat(a.Location.Latitude)
			fields["longitude"] = sqlFloat(a.Location.Longitude)
		}
		if len(a.AssetTypes) > 0 {
			fields["asset_type"] = sqlString(&a.AssetTypes[0].Name)
			if cat := a.CategoryOf(); cat != nil {
				fields["category"] = sqlString(&cat.Name)
			}
		}

		pushed, err := client.Upsert(ctx, a.ID, fields)
		if err != nil {
			metrics.CartoFailuresTotal.Inc()
			log.Printf("carto sync for asset %d failed: %v", a.ID, err)
			return
		}
		if pushed > 0 {
			metrics.CartoPushesTotal.Inc()
			if err := client.FixGeoFields(ctx, a.ID); err != nil {
				metrics.CartoFailuresTotal.Inc()
				log.Printf("carto geo fix for asset %d failed: %v", a.ID, err)
			}
		}
	})

	return client
}
